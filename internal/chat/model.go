package chat

// Model IDs
//
// | Model Name                  | API Model ID                | Use Case                      |
// |-----------------------------|-----------------------------|-------------------------------|
// | Gemini 3 Flash (Preview)    | gemini-3-flash-preview      | Script, storyboard, judge     |
// | Gemini 2.5 Flash            | gemini-2.5-flash            | Stable, balanced performance  |
// | Gemini 3 Pro Image          | gemini-3-pro-image-preview  | Scene image generation        |
// | Imagen 4                    | imagen-4.0-generate-001     | Scene image generation        |
// | GPT-4o                      | gpt-4o                      | OpenAI text and vision judge  |
const (
	ModelGemini3FlashPreview = "gemini-3-flash-preview"
	ModelGemini25Flash       = "gemini-2.5-flash"
	ModelGemini3ProImage     = "gemini-3-pro-image-preview"
	ModelImagen4             = "imagen-4.0-generate-001"
	ModelGPT4o               = "gpt-4o"
)

// Supported aspect ratios for image generation. Anything else falls back
// to DefaultAspectRatio.
var aspectRatios = map[string]bool{
	"1:1":  true,
	"3:4":  true,
	"4:3":  true,
	"9:16": true,
	"16:9": true,
}

// DefaultAspectRatio is used for storyboard frames.
const DefaultAspectRatio = "16:9"

// NormalizeAspectRatio returns ratio when supported, else the default.
func NormalizeAspectRatio(ratio string) string {
	if aspectRatios[ratio] {
		return ratio
	}
	return DefaultAspectRatio
}
