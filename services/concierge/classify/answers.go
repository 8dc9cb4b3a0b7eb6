// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

// DefaultLanguage is used when a category has no answer in the
// requested language.
const DefaultLanguage = "en"

// cannedAnswers maps category → language → response text for the
// cascade's fallback stage. Deliberately deterministic so the stage's
// output is safe to cache.
var cannedAnswers = map[Category]map[string]string{
	CategoryGreeting: {
		"en": "Hello! Welcome — I'm the concierge assistant. How can I help you with your stay?",
		"es": "¡Hola! Bienvenido — soy el asistente de conserjería. ¿Cómo puedo ayudarle con su estancia?",
		"pt": "Olá! Bem-vindo — sou o assistente de concierge. Como posso ajudar com a sua estadia?",
	},
	CategoryBooking: {
		"en": "I can help with reservations. Please tell me your desired dates and room type, and I'll check availability.",
		"es": "Puedo ayudarle con reservas. Indíqueme las fechas y el tipo de habitación que desea y comprobaré la disponibilidad.",
		"pt": "Posso ajudar com reservas. Informe as datas desejadas e o tipo de quarto e verificarei a disponibilidade.",
	},
	CategoryPayment: {
		"en": "We accept major credit and debit cards. Invoices are emailed after checkout; let me know if you need a copy or have a billing question.",
		"es": "Aceptamos las principales tarjetas de crédito y débito. Las facturas se envían por correo tras la salida; dígame si necesita una copia.",
		"pt": "Aceitamos os principais cartões de crédito e débito. As faturas são enviadas por e-mail após o checkout; avise se precisar de uma cópia.",
	},
	CategoryLocation: {
		"en": "You can find our address, directions, and a map in your booking confirmation. Would you like me to send them again?",
		"es": "Encontrará nuestra dirección, indicaciones y un mapa en su confirmación de reserva. ¿Quiere que se los envíe de nuevo?",
		"pt": "O endereço, as direções e um mapa estão na sua confirmação de reserva. Quer que eu os envie novamente?",
	},
	CategoryHelp: {
		"en": "I can help with bookings, payments, directions, and general questions about your stay. What do you need?",
		"es": "Puedo ayudarle con reservas, pagos, indicaciones y preguntas generales sobre su estancia. ¿Qué necesita?",
		"pt": "Posso ajudar com reservas, pagamentos, direções e dúvidas gerais sobre a sua estadia. O que precisa?",
	},
	CategoryCancel: {
		"en": "Cancellations are free up to 48 hours before check-in. To cancel or change a reservation, share your booking reference and I'll take care of it.",
		"es": "Las cancelaciones son gratuitas hasta 48 horas antes de la entrada. Para cancelar o cambiar una reserva, indíqueme su número de reserva.",
		"pt": "Cancelamentos são gratuitos até 48 horas antes do check-in. Para cancelar ou alterar uma reserva, informe o número da reserva.",
	},
}

// Answer returns the canned answer for a category in the requested
// language, falling back to DefaultLanguage when the language is not
// available.
//
// # Outputs
//
//   - string: The answer text.
//   - bool: False when the category has no canned answer at all.
func Answer(category Category, language string) (string, bool) {
	byLang, ok := cannedAnswers[category]
	if !ok {
		return "", false
	}
	if answer, ok := byLang[language]; ok {
		return answer, true
	}
	if answer, ok := byLang[DefaultLanguage]; ok {
		return answer, true
	}
	return "", false
}
