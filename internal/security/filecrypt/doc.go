// Package filecrypt cifra archivos en reposo por tenant.
//
// Cada tenant tiene su propia clave AES-256 derivada con HKDF-SHA256 a partir
// de un master key de proceso (32 bytes) y del slug del tenant. La clave no se
// persiste nunca: cualquier proceso con el mismo master key obtiene la misma
// clave para el mismo tenant.
//
// Los archivos se cifran con AES-256-GCM. Cada llamada a Encrypt usa un IV
// aleatorio nuevo de 12 bytes; el tag de 16 bytes se guarda aparte del
// ciphertext (columnas encryption_iv / encryption_tag).
package filecrypt
