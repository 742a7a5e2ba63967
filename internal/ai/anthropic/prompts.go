package anthropic

// describePrompt asks for a strict-JSON description so the response can be
// parsed without heuristics. Tag ordering matters: most relevant first.
const describePrompt = `Describe this image for a photo library.

Respond with ONLY a JSON object, no surrounding prose, in this exact shape:

{
  "description": "one concise sentence describing the image content",
  "tags": ["tag1", "tag2", "tag3"]
}

Rules:
- "description" is a single sentence, at most 140 characters.
- "tags" holds 3 to 8 lowercase keywords, ordered from most to least relevant.
- Tags name visible subjects, scene type, and dominant colors.
- Do not include markdown, code fences, or any text outside the JSON object.`
