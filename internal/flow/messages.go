package flow

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/indianamx/buenfinbot/internal/campaign"
	"github.com/indianamx/buenfinbot/internal/whatsapp"
)

// Conversation keywords. The start keyword matches anywhere in the text,
// case-insensitively, so the QR deep-link message triggers it too.
const (
	startKeyword = "QUIERO PARTICIPAR"
	exitKeyword  = "SALIR"
)

const (
	msgWelcome = "👋 ¡Hola!\nBienvenido al *Buen Fin Indiana* ⚡\n" +
		"Para iniciar tu registro, escribe *QUIERO PARTICIPAR*"

	msgGreeting = "👋 ¡Hola! Bienvenido al *Buen Fin Indiana* ⚡"

	msgAskName    = "¡Listo! Por favor, escribe tu *nombre completo*."
	msgAskStore   = "Cuéntanos, ¿*en qué tienda* realizaste tu compra?"
	msgAskTaxName = "Ingresa el *RFC o Nombre completo* a quien está registrado el ticket o factura.\n" +
		"No importa si lo estás registrando con autorización de alguien más."
	msgAskOccupation = "¿Cuál es tu *ocupación principal*?"
	msgAskOccasion   = "🎉 ¿Qué *estamos festejando* con esta promoción?"
	msgAskReferral   = "¿Por qué medio te enteraste de la promoción?"

	msgAskPhoto = "📸 ¡Genial!\nEnvía una *foto clara* de tu *ticket/factura* participante.\n" +
		"Procura que se vea completo y legible: *folio, razón social o nombre y producto Indiana* " +
		"por *monto mayor a $6,000 + IVA*.\n" +
		"Las *cotizaciones no participan*."
	msgAskSecondPhoto = "📸 Perfecto, envía una *foto clara* de tu siguiente *ticket* de compra participante."

	msgProcessing = "⏳ Procesando tu ticket, por favor espera..."

	msgValidation = "⏳ ¡Gracias! *Estamos validando tu ticket*.\n" +
		"Nuestro equipo revisará tu compra y te contactará en un máximo de *24 horas*.\n" +
		"Si tienes dudas, escríbenos al 📞 55 3478 4786 o 55 1954 2345."

	msgReviewNeeded = "❌ No pudimos leer correctamente tu ticket. " +
		"Será revisado manualmente por nuestro equipo."
	msgNoPrize = "✅ Tu ticket fue recibido y leído correctamente, pero por el momento " +
		"*no hay un premio disponible* para el monto de tu compra."

	msgAskAnotherTicket = "¿Tienes *otro ticket*? (Sí / No)"
	msgRepeatReminder   = "Responde *Sí* si tienes otro ticket o *No* para terminar."
	msgGoodbye          = "🙌 ¡Gracias por participar en el *Buen Fin Indiana*! 🎁\nPronto recibirás noticias."
	msgExit             = "✅ Gracias, puedes volver más tarde escribiendo *QUIERO PARTICIPAR*."

	msgRejectText    = "❌ Recibí texto, pero necesito una *imagen* de tu ticket (JPG/PNG)."
	msgRejectGeneric = "❌ Tipo de archivo no válido. Envía una *imagen* (JPG/PNG)."

	msgInvalidReferral = "Por favor elige una de las opciones: *Radio*, *Cartel publicitario* o *En tienda*."

	msgFailure = "😔 Lo sentimos, algo salió mal procesando tu mensaje. Intenta de nuevo en unos minutos."
)

// moneyPrinter groups thousands the way Mexican receipts do ($12,345.67).
var moneyPrinter = message.NewPrinter(language.Make("es-MX"))

func msgWon(prize string, amount float64) string {
	return moneyPrinter.Sprintf("🎉 ¡Felicidades! Has ganado *%s* por tu compra de $%.2f en el Buen Fin Indiana ⚡", prize, amount)
}

func msgRejectDocument(filename string) string {
	if filename == "" {
		filename = "archivo"
	}
	return fmt.Sprintf("❌ Recibí un archivo (%s) pero necesito una *imagen* de tu ticket (JPG/PNG).", filename)
}

var occupationButtons = []whatsapp.Button{
	{ID: "1", Title: "Electricista"},
	{ID: "2", Title: "Contratista"},
	{ID: "3", Title: "Otro"},
}

var occasionButtons = []whatsapp.Button{
	{ID: "1", Title: "Buen Fin"},
	{ID: "2", Title: "14 de Feb"},
	{ID: "3", Title: "Pascua"},
}

var referralButtons = []whatsapp.Button{
	{ID: "1", Title: "Radio"},
	{ID: "2", Title: "Cartel publicitario"},
	{ID: "3", Title: "En tienda"},
}

// prompt sends the question for the given step.
func (e *Engine) prompt(ctx context.Context, to string, step campaign.Step) error {
	switch step {
	case campaign.StepName:
		return e.sender.SendText(ctx, to, msgAskName)
	case campaign.StepStore:
		return e.sender.SendText(ctx, to, msgAskStore)
	case campaign.StepTaxName:
		return e.sender.SendText(ctx, to, msgAskTaxName)
	case campaign.StepOccupation:
		return e.sender.SendButtons(ctx, to, msgAskOccupation, occupationButtons)
	case campaign.StepOccasion:
		return e.sender.SendButtons(ctx, to, msgAskOccasion, occasionButtons)
	case campaign.StepReferral:
		return e.sender.SendButtons(ctx, to, msgAskReferral, referralButtons)
	case campaign.StepAwaitingPhoto:
		return e.sender.SendText(ctx, to, msgAskPhoto)
	}
	return nil
}
