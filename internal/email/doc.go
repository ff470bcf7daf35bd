// Package email entrega los mensajes del flujo de identidad: código 2FA,
// invitación y reset de contraseña.
//
//	auth.Service ──► Sender (Mailer) ──► Transport (SMTPTransport, go-mail)
//
// Mailer arma asunto y cuerpos (texto + HTML, en francés) y delega el envío
// a un Transport. Los tests usan un Transport falso.
package email
