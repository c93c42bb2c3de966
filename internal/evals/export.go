package evals

import (
	"fmt"
	"slices"
	"strings"
)

// ValidExportFormats is the allow-list exportFormat checks against.
var ValidExportFormats = []string{"pdf", "png", "jpg", "jpeg", "svg", "html", "json", "xml"}

func init() {
	register("exportFormat", "export format", exportFormat)
	register("exportCompleteness", "export completeness", exportCompleteness)
	register("exportStructure", "export structure", exportStructure)
	register("exportQuality", "export quality", exportQuality)
	register("exportReadiness", "export readiness", exportReadiness)
}

func exportFormat(_ string, doc map[string]any) Result {
	format, ok := str(doc["format"])
	if !ok || format == "" {
		return fail("No format specified in output")
	}
	format = strings.ToLower(format)
	valid := slices.Contains(ValidExportFormats, format)

	verdict := "Invalid"
	score := 0.0
	if valid {
		verdict, score = "Valid", 1
	}
	return Result{Score: score, Info: map[string]any{
		"reason":        fmt.Sprintf("Export format validation: %s format (%s)", verdict, format),
		"format":        format,
		"isValidFormat": valid,
		"validFormats":  ValidExportFormats,
	}}
}

// exportData returns the "data" object every other export metric inspects.
func exportData(doc map[string]any) (map[string]any, bool) {
	return object(doc["data"])
}

func exportCompleteness(_ string, doc map[string]any) Result {
	data, ok := exportData(doc)
	if !ok {
		return fail("No data found in output")
	}
	content, _ := str(data["content"])
	_, hasMetadata := object(data["metadata"])
	return sumChecks("Export completeness", []check{
		pass("hasContent", 0.4, strings.TrimSpace(content) != ""),
		pass("hasMetadata", 0.3, hasMetadata),
		pass("hasTimestamp", 0.3, anyTruthy(data, "timestamp", "createdAt", "exportedAt")),
	}, nil)
}

func exportStructure(_ string, doc map[string]any) Result {
	data, ok := exportData(doc)
	if !ok {
		return fail("No data found in output")
	}
	return sumChecks("Export structure", []check{
		pass("hasValidStructure", 0.5, true),
		pass("hasRequiredFields", 0.5, anyTruthy(data, "content", "scenes", "characters", "storyboard")),
	}, nil)
}

func exportQuality(_ string, doc map[string]any) Result {
	data, ok := exportData(doc)
	if !ok {
		return fail("No data found in output")
	}
	dpi, _ := number(data["dpi"])
	high := data["quality"] == "high" || data["resolution"] == "high" || dpi >= 300
	return sumChecks("Export quality", []check{
		pass("hasHighQuality", 0.4, high),
		pass("hasOptimization", 0.3, anyTruthy(data, "optimized", "compressed", "optimization")),
		pass("hasErrorHandling", 0.3, anyTruthy(data, "errorHandling", "validation", "checksum")),
	}, nil)
}

func exportReadiness(_ string, doc map[string]any) Result {
	data, ok := exportData(doc)
	if !ok {
		return fail("No data found in output")
	}
	ready := data["ready"] == true || data["status"] == "ready" || data["complete"] == true
	return sumChecks("Export readiness", []check{
		pass("isReady", 0.5, ready),
		pass("hasUrl", 0.3, anyTruthy(data, "url", "downloadUrl", "fileUrl")),
		pass("hasSize", 0.2, anyTruthy(data, "size", "fileSize", "bytes")),
	}, nil)
}
