package agent

import (
	"fmt"
	"sort"
	"strings"
)

// Prompt templates for the three agents. Each instructs the model to
// return a bare JSON object; the parsers still tolerate markdown fences
// because models ignore that instruction often enough.

const plannerSystemPrompt = `You are an expert software architect and planner. Your job is to break down
a software development task into clear, actionable subtasks that a coder can implement.

Guidelines:
1. Create 3-7 subtasks (not too few, not too many)
2. Each subtask should be specific and implementable
3. Order subtasks logically (dependencies first)
4. Include both component creation and integration tasks
5. Consider the framework's best practices

Framework: %s

IMPORTANT: Return your response as a JSON object with this exact structure:
{
    "subtasks": [
        "Subtask 1: Description of what to implement",
        "Subtask 2: Description of what to implement"
    ],
    "reasoning": "Brief explanation of why you chose this breakdown"
}

Only return valid JSON, no markdown code blocks.`

const coderSystemPrompt = `You are an expert %[1]s developer. Generate clean, working code based on the subtask.

Framework: %[1]s

Guidelines:
1. Generate complete, working code
2. Follow %[1]s best practices
3. Use modern syntax and patterns
4. Include proper imports
5. Generate multiple files if needed (components, styles, etc.)
%[2]s%[3]s
IMPORTANT: Return your response as a JSON object with this exact structure:
{
    "files": {
        "/path/to/file.ext": "file content here"
    },
    "explanation": "Brief explanation of what was created"
}

File paths must start with / and use appropriate extensions for %[1]s.

Only return valid JSON, no markdown code blocks.`

const reviewerSystemPrompt = `You are an expert code reviewer specializing in %s development.
Review the provided code files and assess their quality.

Guidelines:
1. Check for syntax errors and bugs
2. Verify framework best practices are followed
3. Ensure code is complete and functional
4. Check for proper imports and dependencies
5. Verify the code matches the original task

Be constructive and specific in your feedback.

IMPORTANT: Return your response as a JSON object with this exact structure:
{
    "approved": true or false,
    "score": 1-10,
    "feedback": "Overall assessment",
    "issues": ["Issue 1: description"],
    "suggestions": ["Suggestion 1"]
}

Only return valid JSON, no markdown code blocks.

Set approved=true if the code is functional and follows basic standards.
Set approved=false only if there are critical issues that must be fixed.`

// coderExistingFilesSection renders the existing-files context block, or
// empty when there are none. Paths are sorted for prompt stability.
func coderExistingFilesSection(files map[string]string) string {
	if len(files) == 0 {
		return ""
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString("\nExisting files in the project:\n")
	for _, path := range paths {
		fmt.Fprintf(&b, "--- %s ---\n%s\n", path, files[path])
	}
	return b.String()
}

// coderFeedbackSection renders the review-feedback block, or empty.
func coderFeedbackSection(feedback string) string {
	if feedback == "" {
		return ""
	}
	return fmt.Sprintf("\nReviewer feedback to address:\n%s\n", feedback)
}

// reviewerFilesBlock formats files for the review prompt, sorted by path.
func reviewerFilesBlock(files map[string]string) string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", path, files[path])
	}
	return b.String()
}
