package cel

var FilterExpressionExamples = map[string]string{
	"pipeline_equals":   `pipeline == "deploy-prod"`,
	"pipeline_prefix":   `pipeline.startsWith("release-")`,
	"stage_in_list":     `stage in ["build", "test"]`,
	"event_failure":     `event in ["BREAKS", "FAILS"]`,
	"subject_contains":  `subject.contains("nightly")`,
	"sender_domain":     `from.endsWith("@ci.example.com")`,
	"pipeline_regex":    `pipeline.matches("^svc-[a-z]+$")`,
	"absent_pipeline":   `pipeline == ""`,
	"combined_failures": `pipeline.startsWith("release-") && event != "PASSES"`,
}
