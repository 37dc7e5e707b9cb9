package triage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gsPatrick/api-camilamoura/internal/config"
	"github.com/gsPatrick/api-camilamoura/internal/models"
)

const knowledgeHeader = "\n=== BASE DE CONHECIMENTO ===\n"

// persona is the shared style block. The PROMPT_SISTEMA setting replaces it.
func (s *Service) persona(settings models.Settings, areas string) string {
	if custom := settings.Get(models.SettingSystemPrompt, ""); custom != "" {
		return strings.TrimSpace(custom)
	}
	return fmt.Sprintf(`Você é %s, assistente virtual da %s.
Seja empática, acolhedora e profissional. Use linguagem natural e humana.

ÁREAS DE ATUAÇÃO: %s.

REGRAS IMPORTANTES:
- NUNCA use listas numeradas ou menus de opções`, s.profile.AssistantName, s.profile.OfficeName, areas)
}

// KnowledgeContext renders the active documents as a prompt block, or "" when
// there are none or the provider fails.
func (s *Service) KnowledgeContext() string {
	if s.knowledge == nil {
		return ""
	}
	docs, err := s.knowledge.ActiveKnowledgeDocuments()
	if err != nil {
		slog.Warn("Service.KnowledgeContext: cannot load documents", "error", err)
		return ""
	}
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(knowledgeHeader)
	for _, d := range docs {
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", d.Title, truncateRunes(d.Content, s.profile.Knowledge.ExcerptChars))
	}
	return b.String()
}

func (s *Service) followUpPrompt(settings models.Settings, remaining int) string {
	return s.persona(settings, s.profile.PracticeAreas) + `
- NUNCA dê "aulas" sobre direito, apenas faça perguntas para triagem
- Use as informações da BASE DE CONHECIMENTO abaixo para fazer perguntas investigativas sobre requisitos
- Seja concisa mas empática (se cliente mencionar falecimento, expresse condolências)
` + s.KnowledgeContext() + fmt.Sprintf(`
Você pode fazer mais %d pergunta(s) para completar a triagem.
Faça perguntas objetivas e focadas para extrair informações essenciais do caso.

Se perceber alguma das situações abaixo, responda APENAS "ENCERRAR|motivo":
- Cliente já tem advogado: "ENCERRAR|has_lawyer"
- Assunto fora da área (criminal, família, divórcio): "ENCERRAR|outside_area"

Se já tiver informação suficiente, responda: "SUFFICIENT"

Caso contrário, faça UMA pergunta objetiva e acolhedora.`, remaining)
}

func (s *Service) evaluatePrompt(settings models.Settings) string {
	return s.persona(settings, s.profile.PracticeAreas) + `
- NUNCA dê "aulas" sobre direito, apenas faça perguntas para triagem
- Use as informações da BASE DE CONHECIMENTO abaixo para fazer perguntas investigativas sobre requisitos
- Seja concisa mas empática (se cliente mencionar falecimento, expresse condolências)
` + s.KnowledgeContext() + `
Analise a conversa e decida:
1. Se tem INFO SUFICIENTE para triagem (nome, área do direito, situação básica) → responda JSON: {"needsMoreInfo": false}
2. Se precisa de MAIS INFO → responda JSON: {"needsMoreInfo": true, "question": "Pergunta objetiva aqui"}

Se detectar que cliente já tem advogado ou assunto está fora da área, inclua: {"shouldClose": true, "closeReason": "has_lawyer" ou "outside_area"}

Seja eficiente - não prolongue desnecessariamente.`
}

func (s *Service) chatPrompt(settings models.Settings) string {
	return s.persona(settings, s.profile.PracticeAreas) + `
- Responda de forma conversacional e natural
` + s.KnowledgeContext() + `
O cliente já passou pela triagem inicial. Agora você pode:
- Responder dúvidas gerais sobre processos
- Dar informações sobre documentação necessária
- Explicar como funcionam os procedimentos

NÃO dê parecer jurídico específico ou previsões de resultado.
Seja acolhedora e profissional. Se a dúvida for muito específica, oriente a aguardar o contato da equipe.`
}

func (s *Service) classifyPrompt(categories []config.Category) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Você é triagista jurídico da %s.\n", s.profile.OfficeName)
	b.WriteString("Analise o relato e classifique usando EXATAMENTE uma das categorias abaixo.\n\n**CATEGORIAS DISPONÍVEIS:**\n")
	group := ""
	for _, c := range categories {
		if c.Group != group && c.Group != "" {
			group = c.Group
			fmt.Fprintf(&b, "\n%s:\n", group)
		}
		fmt.Fprintf(&b, "- %q", c.Name)
		if c.Description != "" {
			fmt.Fprintf(&b, " - %s", c.Description)
		}
		if c.Keywords != "" {
			fmt.Fprintf(&b, " (palavras-chave: %s)", c.Keywords)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nOUTROS:\n- %q - Casos fora das categorias\n", models.CategoryOther)
	b.WriteString(`
**ENCERRAMENTO (should_close = true):**
- Cliente tem advogado → close_reason: "has_lawyer"
- Assunto fora da área → close_reason: "outside_area"

**RESPONDA APENAS JSON:**
{
  "client_name": "Nome ou null",
  "type": "Categoria",
  "urgency": "Alta" | "Normal",
  "summary": "Resumo objetivo",
  "should_close": false,
  "close_reason": null
}`)
	return b.String()
}

// categories returns the SPECIALTIES_JSON override when it parses, else the profile set.
func (s *Service) categories(settings models.Settings) []config.Category {
	raw := settings.Get(models.SettingSpecialtiesJSON, "")
	if raw == "" {
		return s.profile.Categories
	}
	custom, err := config.ParseCategories(raw)
	if err != nil {
		slog.Warn("Service.categories: invalid specialties setting, using profile", "error", err)
		return s.profile.Categories
	}
	return custom
}
