package service

import (
	htmltemplate "html/template"
	texttemplate "text/template"
)

var certificateHTML = htmltemplate.Must(htmltemplate.New("certificate_mail_html").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8">
<title>Certificado {{.AppName}}</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background: #1E40AF; color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0; }
.content { background: #f9fafb; padding: 30px; border-radius: 0 0 10px 10px; }
.badge { background: #FEF3C7; border: 3px solid #F59E0B; padding: 20px; border-radius: 10px; text-align: center; margin: 20px 0; }
.button { display: inline-block; background: #1E40AF; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; }
.footer { text-align: center; padding: 20px; color: #6B7280; font-size: 14px; }
</style>
</head>
<body>
<div class="container">
  <div class="header"><h1>{{.AppName}}</h1></div>
  <div class="content">
    <h2 style="color: #1E40AF;">¡Felicitaciones, {{.Name}}!</h2>
    <p>Nos complace informarte que has completado exitosamente la capacitación de <strong>{{.AppName}}</strong>{{.ScoreText}}.</p>
    <div class="badge">
      <h3 style="color: #D97706; margin: 0;">{{.TypeName}}</h3>
      <p style="margin: 10px 0 0 0;">Emitido el {{.IssuedOn}}</p>
    </div>
    <p><strong>Tu certificado está disponible en la plataforma:</strong></p>
    <p style="text-align: center;"><a href="{{.BaseURL}}" class="button">Acceder a la Plataforma</a></p>
    <p>Desde tu panel de usuario podrás ver, descargar y compartir tu certificado.</p>
  </div>
  <div class="footer">
    <p>Este es un email automático, por favor no responder.</p>
  </div>
</div>
</body>
</html>
`))

var certificateText = texttemplate.Must(texttemplate.New("certificate_mail_text").Parse(`¡Felicitaciones, {{.Name}}!

Nos complace informarte que has completado exitosamente la capacitación de {{.AppName}}{{.ScoreText}}.

{{.TypeName}}
Emitido el {{.IssuedOn}}

Tu certificado está disponible en la plataforma.
Accede a: {{.BaseURL}}

---
{{.AppName}}
`))

var resetHTML = htmltemplate.Must(htmltemplate.New("reset_mail_html").Parse(`<!DOCTYPE html>
<html lang="es">
<body style="font-family: Arial, sans-serif;">
<p>Hola {{.Name}},</p>
<p>Has solicitado recuperar tu contraseña en {{.AppName}}.</p>
<p><a href="{{.Link}}">Crear una nueva contraseña</a></p>
<p>Este enlace expira en 1 hora. Si no solicitaste esto, ignora este email.</p>
</body>
</html>
`))

var resetText = texttemplate.Must(texttemplate.New("reset_mail_text").Parse(`Hola {{.Name}},

Has solicitado recuperar tu contraseña en {{.AppName}}.

Haz clic en el siguiente enlace para crear una nueva contraseña:
{{.Link}}

Este enlace expira en 1 hora.

Si no solicitaste esto, ignora este email.
`))

var certificateDocument = htmltemplate.Must(htmltemplate.New("certificate_document").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8">
<title>{{.TypeName}} - {{.Name}}</title>
<style>
body { font-family: Georgia, serif; background: #f3f4f6; }
.sheet { max-width: 900px; margin: 40px auto; background: white; border: 12px double #1E40AF; padding: 60px; text-align: center; }
h1 { color: #1E40AF; letter-spacing: 2px; }
.name { font-size: 32px; margin: 30px 0; border-bottom: 1px solid #9CA3AF; display: inline-block; padding: 0 40px; }
.meta { color: #6B7280; margin-top: 40px; font-size: 14px; }
</style>
</head>
<body>
<div class="sheet">
  <h1>{{.TypeName}}</h1>
  <p>{{.AppName}} certifica que</p>
  <div class="name">{{.Name}}</div>
  {{if .ModuleTitle}}<p>ha completado el módulo <strong>{{.ModuleTitle}}</strong></p>{{else}}<p>ha aprobado la evaluación final de la capacitación</p>{{end}}
  {{if .ScoreText}}<p>con una calificación de <strong>{{.ScoreText}}</strong></p>{{end}}
  <div class="meta">
    <p>Emitido el {{.IssuedOn}}</p>
    <p>Código de verificación: {{.Code}}</p>
  </div>
</div>
</body>
</html>
`))
