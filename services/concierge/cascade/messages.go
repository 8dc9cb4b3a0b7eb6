// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cascade

import "github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/classify"

// Static per-language messages for the terminal stages. These never
// depend on any remote call.
var (
	escalationMessages = map[string]string{
		"en": "I've passed your request to our team. A member of staff will get back to you shortly.",
		"es": "He transmitido tu solicitud a nuestro equipo. Un miembro del personal te responderá en breve.",
		"pt": "Encaminhei o seu pedido para a nossa equipe. Um membro da equipe entrará em contato em breve.",
	}

	finalFallbackMessages = map[string]string{
		"en": "I'm sorry, I couldn't find an answer to that right now. Could you rephrase, or ask me something else?",
		"es": "Lo siento, no pude encontrar una respuesta en este momento. ¿Podrías reformular la pregunta o preguntarme otra cosa?",
		"pt": "Desculpe, não consegui encontrar uma resposta agora. Você poderia reformular ou me perguntar outra coisa?",
	}

	errorFallbackMessages = map[string]string{
		"en": "We're experiencing technical difficulties. Please try again in a moment.",
		"es": "Estamos experimentando dificultades técnicas. Por favor, inténtalo de nuevo en un momento.",
		"pt": "Estamos com dificuldades técnicas. Por favor, tente novamente em instantes.",
	}
)

// localize picks the message for a language, falling back to the
// default language.
func localize(messages map[string]string, language string) string {
	if msg, ok := messages[language]; ok {
		return msg
	}
	return messages[classify.DefaultLanguage]
}
