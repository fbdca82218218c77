package agent

import (
	"fmt"
	"strings"
)

// Offline stub agents. Used when no LLM endpoint is configured so the
// service stays fully operable in tests and demos. The outputs are
// deterministic and keyword-driven.

// stubPlan returns a canned decomposition based on task keywords.
func stubPlan(task, framework string) *PlanResult {
	taskLower := strings.ToLower(task)

	var subtasks []string
	switch {
	case strings.Contains(taskLower, "todo"):
		subtasks = []string{
			"Create main App component with state management",
			"Create TodoList component to display items",
			"Create TodoItem component with completion toggle",
			"Create AddTodo component for adding new items",
			"Add styling with CSS",
		}
	case strings.Contains(taskLower, "counter"):
		subtasks = []string{
			"Create Counter component with state",
			"Add increment and decrement buttons",
			"Display current count value",
			"Add styling",
		}
	case strings.Contains(taskLower, "form"):
		subtasks = []string{
			"Create Form component with inputs",
			"Add form validation",
			"Handle form submission",
			"Add styling and feedback messages",
		}
	default:
		subtasks = []string{
			fmt.Sprintf("Create main App component for %s", framework),
			"Implement core functionality",
			"Add user interface elements",
			"Add styling and polish",
			"Wire up event handlers",
		}
	}

	return &PlanResult{
		Subtasks:  subtasks,
		Reasoning: fmt.Sprintf("Standard %s application structure for: %s", framework, task),
	}
}

// stubCode returns canned files keyed off subtask keywords.
func stubCode(req GenerationRequest) *CodeResult {
	subtaskLower := strings.ToLower(req.Subtask)
	files := map[string]string{}

	switch req.Framework {
	case "react":
		switch {
		case strings.Contains(subtaskLower, "app"):
			files["/App.jsx"] = "import React, { useState } from 'react';\n" +
				"import './styles.css';\n\n" +
				"export default function App() {\n" +
				"  const [items, setItems] = useState([]);\n\n" +
				"  return (\n" +
				"    <div className=\"app\">\n" +
				"      <h1>My App</h1>\n" +
				"    </div>\n" +
				"  );\n}\n"
		case strings.Contains(subtaskLower, "list") || strings.Contains(subtaskLower, "todo"):
			files["/TodoList.jsx"] = "import React from 'react';\n\n" +
				"export default function TodoList({ items, onToggle, onDelete }) {\n" +
				"  return (\n" +
				"    <ul className=\"todo-list\">\n" +
				"      {items.map((item, index) => (\n" +
				"        <li key={index} className={item.completed ? 'completed' : ''}>\n" +
				"          <span onClick={() => onToggle(index)}>{item.text}</span>\n" +
				"          <button onClick={() => onDelete(index)}>Delete</button>\n" +
				"        </li>\n" +
				"      ))}\n" +
				"    </ul>\n" +
				"  );\n}\n"
		case strings.Contains(subtaskLower, "item"):
			files["/TodoItem.jsx"] = "import React from 'react';\n\n" +
				"export default function TodoItem({ item, onToggle, onDelete }) {\n" +
				"  return (\n" +
				"    <li className={`todo-item ${item.completed ? 'completed' : ''}`}>\n" +
				"      <input type=\"checkbox\" checked={item.completed} onChange={onToggle} />\n" +
				"      <span>{item.text}</span>\n" +
				"      <button onClick={onDelete}>x</button>\n" +
				"    </li>\n" +
				"  );\n}\n"
		case strings.Contains(subtaskLower, "add") || strings.Contains(subtaskLower, "form"):
			files["/AddTodo.jsx"] = "import React, { useState } from 'react';\n\n" +
				"export default function AddTodo({ onAdd }) {\n" +
				"  const [text, setText] = useState('');\n\n" +
				"  const handleSubmit = (e) => {\n" +
				"    e.preventDefault();\n" +
				"    if (text.trim()) {\n" +
				"      onAdd(text.trim());\n" +
				"      setText('');\n" +
				"    }\n" +
				"  };\n\n" +
				"  return (\n" +
				"    <form onSubmit={handleSubmit} className=\"add-todo\">\n" +
				"      <input value={text} onChange={(e) => setText(e.target.value)} />\n" +
				"      <button type=\"submit\">Add</button>\n" +
				"    </form>\n" +
				"  );\n}\n"
		case strings.Contains(subtaskLower, "styl") || strings.Contains(subtaskLower, "css"):
			files["/styles.css"] = ".app {\n  max-width: 500px;\n  margin: 0 auto;\n  padding: 20px;\n  font-family: sans-serif;\n}\n\n" +
				".todo-list {\n  list-style: none;\n  padding: 0;\n}\n\n" +
				".todo-item.completed span {\n  text-decoration: line-through;\n  color: #888;\n}\n"
		default:
			files["/Component.jsx"] = "import React from 'react';\n\n" +
				"export default function Component() {\n" +
				"  return (\n" +
				"    <div className=\"component\">\n" +
				"      {/* " + req.Subtask + " */}\n" +
				"    </div>\n" +
				"  );\n}\n"
		}
	case "vue":
		if strings.Contains(subtaskLower, "app") {
			files["/App.vue"] = "<template>\n  <div id=\"app\">\n    <h1>My App</h1>\n  </div>\n</template>\n\n" +
				"<script setup>\nimport { ref } from 'vue';\n\nconst items = ref([]);\n</script>\n"
		} else {
			files["/Component.vue"] = "<template>\n  <div class=\"component\">\n    <!-- " + req.Subtask + " -->\n  </div>\n</template>\n\n<script setup>\n</script>\n"
		}
	default:
		files["/index.js"] = "// Generated for: " + req.Subtask + "\n"
	}

	return &CodeResult{
		Files:       files,
		Explanation: "Stub code for: " + req.Subtask,
	}
}

// stubReview performs heuristic checks: empty files, missing exports for
// react, missing template sections for vue.
func stubReview(files map[string]string, framework string) *ReviewResult {
	if len(files) == 0 {
		return &ReviewResult{
			Approved:    false,
			Score:       1,
			Feedback:    "No files to review",
			Issues:      []string{"No files were generated"},
			Suggestions: []string{"Generate at least one file"},
		}
	}

	var issues, suggestions []string
	score := 7

	for path, content := range files {
		if strings.TrimSpace(content) == "" {
			issues = append(issues, path+": File is empty")
			score -= 2
			continue
		}

		switch framework {
		case "react":
			if strings.HasSuffix(path, ".jsx") || strings.HasSuffix(path, ".tsx") {
				if !strings.Contains(content, "export") {
					issues = append(issues, path+": Missing export statement")
					score--
				}
			}
		case "vue":
			if strings.HasSuffix(path, ".vue") && !strings.Contains(content, "<template>") {
				issues = append(issues, path+": Missing <template> section")
				score--
			}
		}
	}

	if len(files) < 2 {
		suggestions = append(suggestions, "Consider splitting code into multiple components")
	}
	hasCSS := false
	for path := range files {
		if strings.HasSuffix(path, ".css") {
			hasCSS = true
			break
		}
	}
	if !hasCSS {
		suggestions = append(suggestions, "Consider adding a CSS file for styling")
	}

	if score < 1 {
		score = 1
	} else if score > 10 {
		score = 10
	}

	approved := score >= 5 && len(issues) == 0

	feedback := fmt.Sprintf("Code review for %s project: ", framework)
	if approved {
		feedback += fmt.Sprintf("Approved with score %d/10", score)
	} else {
		feedback += fmt.Sprintf("Needs revision. Score: %d/10. Issues: %d", score, len(issues))
	}

	return &ReviewResult{
		Approved:    approved,
		Score:       score,
		Feedback:    feedback,
		Issues:      issues,
		Suggestions: suggestions,
	}
}
