package openai

import (
	"fmt"

	"github.com/poiesic/secondbrain/ai"
	"github.com/tmc/langchaingo/llms"
)

const answerSystemPrompt = `You are a helpful AI assistant that acts as a "second brain" for the user. You have access to the user's personal knowledge base containing documents, notes, audio transcripts, web content, and images they've saved.

Your role is to:
1. Answer questions based on the provided context from their knowledge base
2. Synthesize information from multiple sources when relevant
3. Be conversational and helpful, like talking to a knowledgeable friend
4. Acknowledge when information isn't available in their knowledge base
5. Reference specific sources when providing information
6. Maintain context from previous conversations when relevant

Guidelines:
- Always base your answers on the provided context
- If the context doesn't contain relevant information, say so clearly
- When referencing information, mention the source (document title, date, etc.)
- Be concise but comprehensive
- Use a friendly, conversational tone
- If asked about temporal information (like "last week"), pay attention to dates in the context`

const keywordResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "keywords": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "keyword": {
            "type": "string",
            "pattern": "^[a-z0-9]+( [a-z0-9]+)*$"
          },
          "importance": {
            "type": "integer",
            "minimum": 1,
            "maximum": 10
          }
        },
        "required": ["keyword", "importance"],
        "additionalProperties": false
      }
    }
  },
  "required": ["keywords"],
  "additionalProperties": false
}`

const keywordPromptTemplate = `Extract up to %d important keywords or phrases from the given content and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Keywords must be lowercase, 1-3 words, singular form only.
- Keywords should work as tags for organizing a personal knowledge base: topics, people, places, projects.
- Importance is an integer from 1 (least relevant) to 10 (most central).
- Include only keywords that are explicitly mentioned or clearly implied by the content. Do not hallucinate.
- If no keywords can be identified, return "keywords": [].

Example:
Input: "Supervised learning trains a model on labelled examples. Common algorithms include linear regression and decision trees."
Output:
{
  "keywords": [
    {"keyword":"supervised learning","importance":10},
    {"keyword":"linear regression","importance":7},
    {"keyword":"decision tree","importance":7}
  ]
}`

// buildKeywordPrompt creates the keyword extraction system prompt.
func buildKeywordPrompt(max int) string {
	return fmt.Sprintf(keywordPromptTemplate, max, keywordResponseSchema)
}

// buildAnswerMessages assembles the system prompt, recent history and the
// context-bearing user message.
func buildAnswerMessages(prompt *ai.Prompt) []llms.MessageContent {
	history := prompt.RecentHistory()
	messages := make([]llms.MessageContent, 0, len(history)+2)

	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeSystem,
		Parts: []llms.ContentPart{llms.TextPart(answerSystemPrompt)},
	})
	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		if msg.Role == ai.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt.UserMessage())},
	})
	return messages
}
