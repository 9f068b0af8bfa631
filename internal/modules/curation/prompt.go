package curation

import (
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/yungbote/curation-backend/internal/domain"
)

// CourseContext is the course-level information every batch prompt carries.
type CourseContext struct {
	CourseName  string
	IdeaCentral string
}

type promptLesson struct {
	LessonID    string   `json:"lessonId"`
	LessonTitle string   `json:"lessonTitle"`
	Components  []string `json:"components"`
	Critical    []string `json:"criticalComponents,omitempty"`
}

const responseShape = `{
  "lessons": [
    {
      "lessonId": "<lessonId>",
      "lessonTitle": "<lessonTitle>",
      "components": [
        {"componentType": "<componentType>", "url": "<url>", "title": "<title>", "rationale": "<why this source fits>"}
      ]
    }
  ]
}`

// BuildPrompt assembles the user prompt for one batch. Lessons keep the
// order of their first component in the batch.
func BuildPrompt(course CourseContext, batch []types.RequiredComponent, recovery bool, rung Rung) string {
	var lessons []*promptLesson
	byID := map[string]*promptLesson{}
	for _, c := range batch {
		l := byID[c.LessonID]
		if l == nil {
			l = &promptLesson{LessonID: c.LessonID, LessonTitle: c.LessonTitle}
			byID[c.LessonID] = l
			lessons = append(lessons, l)
		}
		l.Components = append(l.Components, c.ComponentType)
		if c.IsCritical {
			l.Critical = append(l.Critical, c.ComponentType)
		}
	}
	lessonJSON, _ := json.MarshalIndent(lessons, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Curso: %s\n", strings.TrimSpace(course.CourseName))
	if idea := strings.TrimSpace(course.IdeaCentral); idea != "" {
		fmt.Fprintf(&b, "Idea central: %s\n", idea)
	}
	b.WriteString("\nLecciones y componentes que necesitan una fuente:\n")
	b.Write(lessonJSON)
	b.WriteString("\n\nInstrucciones:\n")
	b.WriteString("- Usa la herramienta de búsqueda web para encontrar cada fuente. No inventes URLs.\n")
	b.WriteString("- Propón exactamente una fuente por componente, con su URL pública tal como aparece en la búsqueda.\n")
	b.WriteString("- Prioriza los componentes críticos.\n")
	if recovery {
		b.WriteString("- Esta es una segunda ronda: estos componentes quedaron sin fuente verificable. ")
		b.WriteString("Busca fuentes distintas, con texto abundante y accesibles sin registro; evita PDFs, vídeos y páginas de índice.\n")
	}
	if rung.Index > 1 {
		fmt.Fprintf(&b, "- Intento %d: el intento anterior no devolvió fuentes verificables. Cita solo páginas que la búsqueda haya devuelto.\n", rung.Index)
	}
	b.WriteString("\nResponde SOLO con JSON válido con esta forma:\n")
	b.WriteString(responseShape)
	b.WriteString("\n")
	return b.String()
}
