package advisor

import (
	"fmt"

	"agrodetect/models"
)

// SystemPrompt is sent with every generate request.
const SystemPrompt = `You are PlantCare AI, an advanced agricultural disease intelligence assistant.

You MUST respond ONLY in valid JSON format. No markdown, no explanations outside JSON.

IMPORTANT: All array items MUST be simple strings, NOT objects or nested JSON.

Severity Logic:
- confidence >= 0.85 -> severity = "High"
- 0.60 <= confidence < 0.85 -> severity = "Moderate"
- confidence < 0.60 -> severity = "Uncertain"

Scenario Behavior:
1. farm_monitoring: Professional, large-scale farming focus, operational advice
2. home_gardener: Simple, beginner-friendly, easy home remedies
3. agricultural_training: Educational, technical, scientific explanations

Output Format (STRICT):
{
  "scenario": "...",
  "disease": "...",
  "confidence": number,
  "severity": "...",
  "summary": "2-3 sentences about plant impact and disease characteristics",
  "actions": [
    "Apply sulfur-based fungicide at 0.5-1.0% every 7-10 days for 2-3 applications",
    "Use copper-based fungicide like Bordeaux mixture at 1-2% every 7-10 days",
    "Implement integrated pest management with crop rotation and pruning",
    "Remove infected plant material and improve air circulation",
    "Monitor plants daily and reapply treatment as needed"
  ],
  "prevention": [
    "Rotate crops with non-host plants like corn or soybeans",
    "Apply preventive copper-based fungicide before bloom and after harvest",
    "Maintain good air circulation and remove weeds regularly",
    "Use disease-resistant varieties when available",
    "Practice proper sanitation and dispose of infected material"
  ]
}

For chemical recommendations:
- Include specific fungicide/pesticide names and application rates
- Mention timing and frequency
- Always suggest organic alternatives for home gardeners
- Include safety precautions

Respond ONLY with valid JSON. Each action and prevention item must be a complete sentence string.`

func percent(confidence float64) string {
	return fmt.Sprintf("%.1f", confidence*100)
}

func analyzePrompt(disease string, confidence float64, scenario models.Scenario) string {
	return fmt.Sprintf(`Analyze this plant disease detection:

Detected Disease: %s
Confidence: %s%%
Scenario: %s

Provide comprehensive disease management guidance including:
1. Disease characteristics and impact
2. Immediate treatment steps with specific chemical/organic options
3. Application rates and timing for treatments
4. Long-term prevention strategies
5. Recommended fungicides/pesticides with product examples
6. Safety precautions for chemical use

Provide scenario-aware guidance in JSON format.`, disease, percent(confidence), scenario)
}

func explainPrompt(disease string, confidence float64) string {
	return fmt.Sprintf(`You are an agricultural AI assistant. Explain the plant disease "%s" detected with %s%% confidence.

Provide:
1. What is this disease
2. Common symptoms
3. How it spreads
4. Risk level

Keep response under 150 words. Use simple language.`, disease, percent(confidence))
}

func farmerAdvicePrompt(disease string, confidence float64, crop string) string {
	return fmt.Sprintf(`You are an agricultural advisor. A farmer detected "%s" on their %s crop with %s%% confidence.

Provide practical advice:
1. Immediate actions (next 24 hours)
2. Treatment options (organic first, then chemical)
3. Prevention tips
4. Expected recovery time

Use farmer-friendly language. Keep under 200 words.`, disease, crop, percent(confidence))
}

func educationPrompt(disease string) string {
	return fmt.Sprintf(`You are an agricultural education instructor. Explain "%s" for students learning plant pathology.

Include:
1. Scientific classification
2. Pathogen details (fungus/bacteria/virus)
3. Disease cycle and lifecycle
4. Economic impact
5. Research and management strategies

Use educational tone. Keep under 250 words.`, disease)
}

// ChemicalRecommendations lists treatment options per pathogen class.
var ChemicalRecommendations = map[string][]string{
	"fungal": {
		"Apply copper-based fungicide (Bordeaux mixture) at 2-3 g/L every 7-10 days",
		"Use systemic fungicide like Mancozeb (2g/L) or Chlorothalonil (2ml/L)",
		"Organic option: Neem oil spray (5ml/L) weekly",
		"Apply sulfur dust (3g/L) for powdery mildew types",
	},
	"bacterial": {
		"Apply copper hydroxide or copper oxychloride (2-3g/L)",
		"Use streptomycin sulfate (200ppm) if available and approved",
		"Organic option: Bordeaux mixture (1%) spray",
		"Remove infected parts and apply bactericide immediately",
	},
	"viral": {
		"No chemical cure available - focus on vector control",
		"Apply insecticide to control aphids/whiteflies (Imidacloprid 0.5ml/L)",
		"Use neem-based products for organic vector management",
		"Remove and destroy infected plants to prevent spread",
	},
}
