// Package logger expone un logger Zap global con scoping por contexto.
//
// Init() se llama una vez desde main con el entorno y el nivel. Los services
// obtienen el logger del request con From(ctx) y le agregan capa, componente
// y operación:
//
//	log := logger.From(ctx).With(
//	    logger.Layer("service"),
//	    logger.Component("auth.login"),
//	    logger.Op("Login"),
//	)
//	log.Debug("password mismatch", logger.TenantSlug(tenant))
//
// Nunca se loguean secretos: contraseñas, códigos 2FA, tokens crudos ni claves.
// Los emails pasan por Email(), que los enmascara.
package logger
