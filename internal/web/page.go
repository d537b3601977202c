package web

import "html/template"

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>adbinfo</title>
<style>
body { font-family: system-ui, sans-serif; text-align: center; margin-top: 2rem; padding: 1rem; }
.status { font-weight: bold; margin: 1rem 0; color: #333; }
.status.ok { color: #28a745; }
.status.err { color: #dc3545; }
.buttons { display: flex; justify-content: center; gap: 1rem; margin-bottom: 1.5rem; }
button { padding: 0.5rem 1rem; cursor: pointer; }
button:disabled { cursor: not-allowed; opacity: 0.5; }
.info { margin: 0 auto; max-width: 400px; text-align: left; border: 1px solid #ddd; border-radius: 8px; padding: 1rem; background: #fafafa; }
.info ul { list-style: none; padding: 0; }
.info li { margin-bottom: 0.5rem; }
.tips { margin-top: 1.5rem; font-size: 0.85rem; color: #666; }
.tips ul { text-align: left; display: inline-block; max-width: 500px; }
</style>
</head>
<body>
<h2>📱 Android ADB Connection</h2>
<p class="status{{if .Failed}} err{{else if .Connected}} ok{{end}}">{{.Status}}</p>
<div class="buttons">
  <form method="post" action="/connect"><button type="submit"{{if .Connected}} disabled{{end}}>🔌 Connect Device</button></form>
  <form method="post" action="/disconnect"><button type="submit"{{if not .Connected}} disabled{{end}}>🔌 Disconnect</button></form>
</div>
{{if .Info}}
<div class="info">
  <h3 style="text-align: center">📋 Device Info</h3>
  <ul>
  {{range .Info}}<li><strong>{{.Label}}:</strong> {{.Value}}</li>
  {{end}}
  </ul>
</div>
{{end}}
<div class="tips">
  <p><strong>💡 Tips:</strong></p>
  <ul>
    <li>Enable USB Debugging on your Android device</li>
    <li>Accept the "Allow USB debugging?" prompt when it appears</li>
    <li>Close any other running ADB clients (e.g., Android Studio)</li>
  </ul>
</div>
</body>
</html>
`))
