package config

import "time"

// Default returns the built-in office profile.
func Default() *Profile {
	return &Profile{
		OfficeName:    "Advocacia Camila Moura",
		AssistantName: "Carol",
		PracticeAreas: "Previdenciário (aposentadorias, BPC, auxílios), Trabalhista e Consumidor",
		Categories: []Category{
			{Name: "Incapacidade", Group: "PREVIDENCIÁRIO", Description: "Auxílio-doença, aposentadoria por invalidez"},
			{Name: "BPC Deficiente", Group: "PREVIDENCIÁRIO", Description: "BPC/LOAS para pessoas com deficiência"},
			{Name: "Aposentadoria", Group: "PREVIDENCIÁRIO", Description: "Por tempo, idade ou especial"},
			{Name: "Aposentadoria PcD", Group: "PREVIDENCIÁRIO", Description: "Para pessoa com deficiência"},
			{Name: "Pensão por Morte", Group: "PREVIDENCIÁRIO", Description: "Dependentes de falecido"},
			{Name: "Adicional 25%", Group: "PREVIDENCIÁRIO", Description: "Aposentados que precisam de cuidador"},
			{Name: "Aux Acidente", Group: "PREVIDENCIÁRIO", Description: "Auxílio-acidente"},
			{Name: "Revisão de Benefício", Group: "PREVIDENCIÁRIO", Description: "Revisão de benefício existente"},
			{Name: "Reclamação Trabalhista", Group: "TRABALHISTA", Description: "Demissão, verbas, horas extras"},
			{Name: "Consumidor", Group: "CONSUMIDOR", Description: "Nome sujo, cobranças, plano de saúde"},
		},
		IncapacityCategory: "Incapacidade",
		InPersonKeywords:   []string{"Incapacidade", "doença", "acidente", "perícia"},
		IntakeListPattern:  `(?i)triagem|checklist|novos|entrada`,
		UrgentLabelPattern: `(?i)urgente|urgência|prioridade`,
		UrgentLabelColor:   "red",
		Messages: Messages{
			Welcome:           "Olá! Você entrou em contato com o escritório da Dra. Camila Moura. ⚖️\n\nAtuamos nas áreas de Direito Previdenciário, Trabalhista e do Consumidor.",
			AskName:           "Qual é o seu nome completo? 📝",
			AskNarrative:      "Prazer, {nome}! 😊\n\nDescreva brevemente sua situação.",
			DescribeSituation: "Para que possamos entender melhor seu caso, por favor, descreva detalhadamente sua situação. 📝",
			Processing:        "Recebemos suas informações! Estamos analisando seu caso... ⏳",
			HasLawyer:         "Entendemos. Como você já possui advogado constituído, por ética profissional (OAB), não podemos prosseguir.\n\nAtendimento encerrado.",
			OutsideArea:       "Agradecemos seu contato. Este assunto não está entre as áreas atendidas pelo nosso escritório (Previdenciário, Trabalhista e Consumidor).\n\nRecomendamos buscar um especialista.",
			GenericClose:      "Atendimento encerrado. Obrigado pelo contato.",
			InPerson:          "Identificamos que seu caso requer atendimento presencial inicial.",
			CaseRegistered:    "{nome}, seu caso foi registrado! 📋\n\nSe tiver mais dúvidas, pode perguntar que tentarei ajudar.",
			Forwarded:         "{nome}, seu caso foi encaminhado para nossa equipe jurídica. Entraremos em contato em breve! ✅",
			AudioFailed:       "Desculpe, não consegui ouvir seu áudio. Pode digitar sua mensagem, por favor?",
			ChatUnavailable:   "Desculpe, houve um problema. Por favor, aguarde o contato da nossa equipe.",
			NewClientMessage:  "Nova mensagem do cliente:\n{mensagem}",
			ChatMirror:        "📱 Chat pós-triagem:\n\nCliente: {cliente}\n\nAssistente: {assistente}",
		},
		History:           HistoryWindows{FollowUp: 6, Evaluate: 8, Chat: 10},
		Knowledge:         KnowledgeConfig{ExcerptChars: 2000},
		RecentTicketGrace: 10 * time.Minute,
	}
}
