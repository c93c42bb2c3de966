package evals

import (
	"regexp"
	"strings"
)

var structuredContentRe = regexp.MustCompile(`(?i)title|chapter|section|paragraph|list|table`)

func init() {
	register("pdfUploadValidation", "PDF upload validation", pdfUploadValidation)
	register("pdfContentExtraction", "PDF content extraction", pdfContentExtraction)
	register("pdfStructureAnalysis", "PDF structure analysis", pdfStructureAnalysis)
	register("pdfProcessingQuality", "PDF processing quality", pdfProcessingQuality)
	register("pdfDataConversion", "PDF data conversion", pdfDataConversion)
}

func pdfUploadValidation(_ string, doc map[string]any) Result {
	valid, ok := doc["valid"].(bool)
	if !ok {
		return fail("No validation result found in output")
	}
	errs, hasErrors := array(doc["errors"])
	if errs == nil {
		errs = []any{}
	}
	_, hasFileInfo := object(doc["fileInfo"])

	score, reason := 0.0, "PDF upload validation: Invalid"
	if valid {
		score, reason = 1, "PDF upload validation: Valid"
	}
	return Result{Score: score, Info: map[string]any{
		"reason":          reason,
		"isValid":         valid,
		"hasErrorDetails": hasErrors,
		"hasFileInfo":     hasFileInfo,
		"errors":          errs,
	}}
}

func pdfContentExtraction(_ string, doc map[string]any) Result {
	content, ok := str(doc["content"])
	if !ok {
		return fail("No content found in output")
	}
	_, hasMetadata := object(doc["metadata"])
	return sumChecks("PDF content extraction", []check{
		pass("hasText", 0.4, strings.TrimSpace(content) != ""),
		pass("hasStructuredContent", 0.3, structuredContentRe.MatchString(content)),
		pass("hasMetadata", 0.3, hasMetadata),
	}, map[string]any{"contentLength": len(content)})
}

func pdfStructureAnalysis(_ string, doc map[string]any) Result {
	s, ok := object(doc["structure"])
	if !ok {
		return fail("No structure found in output")
	}
	_, pages := array(s["pages"])
	_, sections := array(s["sections"])
	_, layout := object(s["layout"])
	_, blocks := array(s["textBlocks"])
	return sumChecks("PDF structure analysis", []check{
		pass("hasPages", 0.3, pages),
		pass("hasSections", 0.3, sections),
		pass("hasLayout", 0.2, layout),
		pass("hasTextBlocks", 0.2, blocks),
	}, nil)
}

func pdfProcessingQuality(_ string, doc map[string]any) Result {
	q, ok := object(doc["quality"])
	if !ok {
		return fail("No quality metrics found in output")
	}
	return sumChecks("PDF processing quality", []check{
		pass("hasConfidence", 0.4, unitInterval(q["confidence"])),
		pass("hasAccuracy", 0.3, unitInterval(q["accuracy"])),
		pass("hasCompleteness", 0.3, unitInterval(q["completeness"])),
	}, nil)
}

func pdfDataConversion(_ string, doc map[string]any) Result {
	c, ok := object(doc["convertedData"])
	if !ok {
		return fail("No converted data found in output")
	}
	_, hasMetadata := object(c["metadata"])
	return sumChecks("PDF data conversion", []check{
		pass("hasStructuredData", 0.4, anyTruthy(c, "scenes", "characters", "storyboard")),
		pass("hasFormattedContent", 0.3, anyTruthy(c, "formattedContent", "processedText")),
		pass("hasMetadata", 0.3, hasMetadata),
	}, nil)
}
