// Package repository define los contratos de persistencia del núcleo de
// identidad: usuarios, refresh tokens, códigos 2FA, dispositivos de
// confianza, invitaciones y tokens de reset.
//
// Todo el acceso es por tenant: CredentialStore.ForTenant recibe el schema ya
// resuelto por internal/tenant y devuelve repositorios que solo tocan ese
// schema. Ninguna consulta cruza tenants.
//
// Las transiciones de estado que deciden "quién gana" (revocar un refresh,
// sumar un intento 2FA, consumir una invitación) son una única sentencia
// atómica en cada implementación.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - "now" se pasa explícito en las consultas que comparan expiración
//   - Errores de dominio están en errors.go
package repository
