package models

import "strings"

// Operator-editable setting keys.
const (
	SettingEthicsNotice     = "AVISO_ETICO"
	SettingHasLawyerMessage = "MSG_ADVOGADO_EXISTENTE"
	SettingInPersonMessage  = "MSG_PRESENCIAL"
	SettingTargetListID     = "TRELLO_LIST_ID"
	SettingUrgentLabelID    = "TRELLO_LABEL_URGENTE_ID"
	SettingSpecialtiesJSON  = "SPECIALTIES_JSON"
	SettingSystemPrompt     = "PROMPT_SISTEMA"
)

// Settings is a snapshot of the operator settings.
type Settings map[string]string

// Get returns the value for key, or fallback when it is unset or blank.
func (s Settings) Get(key, fallback string) string {
	if v := strings.TrimSpace(s[key]); v != "" {
		return s[key]
	}
	return fallback
}
