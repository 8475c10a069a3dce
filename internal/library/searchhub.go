package library

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/deepfocus-ai/deepfocus/internal/tools"
	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// searchTopK is how many snippets feed the synthesis prompt.
const searchTopK = 5

// noResultsMessage is returned when retrieval finds nothing.
const noResultsMessage = "I couldn't find anything relevant in your library. " +
	"Try re-indexing your root folder or rephrasing your question."

// SearchHubTool builds the search_hub tool: retrieve snippets from lib, then
// synthesize an answer with synth. The synthesis request offers no tools, so
// the model cannot recurse back into search_hub.
func SearchHubTool(lib *Library, synth backend.Backend) tools.Tool {
	return tools.Tool{
		Definition: backend.Tool{
			Name:        "search_hub",
			Description: "Searches your learning materials (PDFs, notes, code, sheets) for specific info, timelines, or summaries.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The specific question or topic to find in your files.",
					},
				},
				"required": []string{"query"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			query, _ := args["query"].(string)
			query = strings.TrimSpace(query)
			if query == "" {
				return tools.Result{}, fmt.Errorf("missing required argument %q", "query")
			}

			results, err := lib.Search(ctx, query, searchTopK)
			if err != nil {
				return tools.Result{}, err
			}
			if len(results) == 0 {
				return tools.Result{Type: "text", Data: noResultsMessage}, nil
			}

			var (
				touched []string
				seen    = make(map[string]bool)
				blocks  = make([]string, 0, len(results))
			)
			for _, r := range results {
				if !seen[r.Path] {
					seen[r.Path] = true
					touched = append(touched, r.Path)
				}
				blocks = append(blocks, fmt.Sprintf("Source: %s\nContent: %s", path.Base(r.Path), r.Snippet))
			}

			res, err := synth.Infer(ctx, backend.Request{
				Messages: []backend.Message{
					{Role: "user", Content: synthesisPrompt(strings.Join(blocks, "\n\n"), query)},
				},
			})
			text := ""
			if err != nil {
				text = "I found relevant notes but encountered an error while summarizing them."
			} else {
				text = strings.TrimSpace(res.Text)
				if text == "" {
					text = "I found relevant notes but encountered an error while summarizing them."
				}
			}

			return tools.Result{
				Type:         "text",
				Data:         text,
				FilesTouched: touched,
			}, nil
		},
	}
}

// synthesisPrompt frames retrieved snippets for the answering model.
func synthesisPrompt(context, query string) string {
	return "You are an expert academic assistant. Use the following snippets from the student's " +
		"learning materials to answer the question below. " +
		"Guidelines:\n" +
		"1. Provide a clear, structured, and informative answer.\n" +
		"2. Cite the source files (e.g., 'According to Lecture 01...') where possible.\n" +
		"3. If the provided context does not contain the answer, say " +
		"'I couldn't find the specific answer in your current files, but based on general knowledge...' " +
		"or state that the information is missing.\n" +
		"4. Focus on accuracy and academic tone.\n\n" +
		"Context:\n" + context + "\n\n" +
		"Student's Question: " + query
}
