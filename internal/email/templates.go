package email

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"
)

type codeVars struct {
	Tenant string
	Code   string
}

type inviteVars struct {
	Tenant string
	Link   string
	Role   string
}

type resetVars struct {
	Tenant string
	Name   string
	Link   string
}

type templatePair struct {
	html *htmltpl.Template
	text *texttpl.Template
}

func mustPair(name, html, text string) templatePair {
	return templatePair{
		html: htmltpl.Must(htmltpl.Must(htmltpl.New(name + "_html").Parse(layoutHTML)).Parse(html)),
		text: texttpl.Must(texttpl.New(name + "_txt").Parse(text)),
	}
}

func render(p templatePair, vars any) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err := p.html.ExecuteTemplate(&hb, "layout", vars); err != nil {
		return "", "", fmt.Errorf("email: render html: %w", err)
	}
	if err := p.text.Execute(&tb, vars); err != nil {
		return "", "", fmt.Errorf("email: render text: %w", err)
	}
	return hb.String(), tb.String(), nil
}

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html lang="fr">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Tenant}}</title>
</head>
<body style="margin:0;padding:0;background-color:#f1f5f9;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Helvetica,Arial,sans-serif">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#f1f5f9;padding:40px 16px">
    <tr><td align="center">
      <table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="max-width:520px">
        <tr><td align="center" style="padding-bottom:28px">
          <p style="margin:0;font-size:20px;font-weight:700;color:#0f172a;text-align:center">{{.Tenant}}</p>
        </td></tr>
        <tr><td style="background:#ffffff;border-radius:12px;padding:40px">
          {{template "content" .}}
        </td></tr>
        <tr><td align="center" style="padding-top:20px">
          <p style="margin:0;font-size:12px;color:#94a3b8">{{.Tenant}}</p>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>{{end}}`

var tpl2FA = mustPair("2fa", `{{define "content"}}<h1 style="margin:0 0 8px 0;font-size:22px;color:#0f172a">Code de connexion</h1>
<p style="margin:0 0 24px 0;font-size:15px;color:#64748b">Votre code de vérification à usage unique :</p>
<p style="text-align:center;font-size:44px;font-weight:800;letter-spacing:14px;color:#0f172a">{{.Code}}</p>
<p style="margin:0;font-size:13px;color:#94a3b8">Ce code expire dans <strong>15 minutes</strong>. Si vous n'avez pas tenté de vous connecter, ignorez cet email.</p>{{end}}`,
	`Votre code de connexion pour {{.Tenant}} est : {{.Code}}

Ce code est valide pendant 15 minutes.

Si vous n'avez pas tenté de vous connecter, ignorez cet email.
`)

var tplInvite = mustPair("invite", `{{define "content"}}<h1 style="margin:0 0 8px 0;font-size:22px;color:#0f172a">Vous êtes invité(e) !</h1>
<p style="margin:0 0 28px 0;font-size:15px;color:#64748b">Vous avez été invité(e) à rejoindre <strong>{{.Tenant}}</strong> en tant que <strong>{{.Role}}</strong>.</p>
<p><a href="{{.Link}}" style="display:inline-block;padding:13px 28px;background:#2563eb;color:#ffffff;text-decoration:none;border-radius:8px">Créer mon compte</a></p>
<p style="margin:0;font-size:13px;color:#94a3b8">Ce lien expire dans <strong>7 jours</strong>.</p>{{end}}`,
	`Vous êtes invité(e) à rejoindre {{.Tenant}} en tant que {{.Role}}.

Cliquez sur le lien pour créer votre compte :
{{.Link}}

Ce lien expire dans 7 jours.
`)

var tplReset = mustPair("reset", `{{define "content"}}<h1 style="margin:0 0 8px 0;font-size:22px;color:#0f172a">Réinitialisation de mot de passe</h1>
<p style="margin:0 0 28px 0;font-size:15px;color:#64748b">Bonjour <strong>{{.Name}}</strong>,<br><br>Vous avez demandé une réinitialisation de votre mot de passe.</p>
<p><a href="{{.Link}}" style="display:inline-block;padding:13px 28px;background:#2563eb;color:#ffffff;text-decoration:none;border-radius:8px">Réinitialiser mon mot de passe</a></p>
<p style="margin:0;font-size:13px;color:#94a3b8">Ce lien expire dans <strong>1 heure</strong>. Si vous n'avez pas fait cette demande, ignorez cet email.</p>{{end}}`,
	`Bonjour {{.Name}},

Vous avez demandé une réinitialisation de mot de passe pour {{.Tenant}}.

Cliquez sur ce lien pour créer un nouveau mot de passe (valide 1 heure) :
{{.Link}}

Si vous n'avez pas fait cette demande, ignorez cet email.

{{.Tenant}}
`)
