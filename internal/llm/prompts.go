package llm

import "fmt"

// ExtractionPrompt generates the prompt for fact extraction from a session buffer.
func ExtractionPrompt(transcript string) string {
	return fmt.Sprintf(`You are a memory extraction system. Analyze this conversation buffer and extract discrete facts worth remembering about the participants.

CONVERSATION:
%s

Extract facts into these kinds:
- episodic: things that happened (e.g., "Organized a community build event on March 3rd")
- semantic: stable facts about a person (e.g., "Uses the in-game name CreeperSlayer99")
- procedural: how the person does things (e.g., "Always tests redstone circuits in a creative copy first")
- observation: behavior noticed across the conversation (e.g., "Tends to ask for examples before trying something")

Rules:
- Only extract genuinely useful, persistent knowledge
- Skip trivia, pleasantries, and anything specific to just this session
- summary is one short sentence; detail may carry supporting context
- Write summaries about "the user", never with names or pronouns for third parties
- confidence is your certainty the fact is true and stable, 0.0 to 1.0
- globally_safe is true ONLY for facts with zero personal sensitivity, the kind anyone could know
- Return ONLY a JSON array, no other text

Return a JSON array:
[{
  "summary": "one sentence fact",
  "detail": "supporting context, may be empty",
  "kind": "episodic|semantic|procedural|observation",
  "confidence": 0.0,
  "globally_safe": false
}]

If nothing worth extracting, return: []`, transcript)
}

// ObservationPrompt generates the prompt for the passive inference pass:
// preferences and tendencies implied by behavior rather than stated outright.
func ObservationPrompt(transcript string) string {
	return fmt.Sprintf(`You are reviewing a conversation buffer for implicit signal: preferences and tendencies the participant shows but never states.

CONVERSATION:
%s

Look for:
- Topics the person returns to unprompted
- How they phrase requests (terse, detailed, exploratory)
- Tools, styles, or approaches they reach for by default
- Things they avoid or deflect

Rules:
- These are inferences, so confidence should rarely exceed 0.6
- Skip anything the person said explicitly; that belongs to fact extraction
- Write summaries about "the user", never with names or pronouns for third parties
- globally_safe is always false for inferred material
- Return ONLY a JSON array, no other text

Return a JSON array:
[{
  "summary": "one sentence inference",
  "detail": "the behavior it was inferred from",
  "kind": "inferred",
  "confidence": 0.0,
  "globally_safe": false
}]

If nothing worth inferring, return: []`, transcript)
}

// MergePrompt generates the prompt for consolidating a new fact into an
// existing overlapping memory.
func MergePrompt(existing, incoming string) string {
	return fmt.Sprintf(`You are a memory consolidation system. An existing memory and a new fact describe the same thing. Produce one merged statement.

EXISTING MEMORY:
%s

NEW FACT:
%s

Rules:
- Prefer the newer fact where the two disagree
- Keep detail from the existing memory that the new fact does not contradict
- One or two sentences, no preamble
- Return ONLY the merged statement, no other text`, existing, incoming)
}
