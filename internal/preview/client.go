package preview

import "strings"

const (
	routePrefix = "/@tandem"
	routeWS     = routePrefix + "/ws"
	routeClient = routePrefix + "/client.js"
	routeHealth = routePrefix + "/health"
	routeMetric = routePrefix + "/metrics"
)

// clientScript connects a page to the reload channel. A full-reload message
// reloads the page; after the server goes away the script reconnects and
// reloads once it is back.
const clientScript = `const url = (location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '` + routeWS + `';
let wasConnected = false;

function connect() {
  const socket = new WebSocket(url);
  socket.addEventListener('message', (ev) => {
    const msg = JSON.parse(ev.data);
    switch (msg.type) {
      case 'connected':
        if (wasConnected) location.reload();
        wasConnected = true;
        console.debug('[tandem] connected');
        break;
      case 'full-reload':
        if (!msg.path || location.pathname.startsWith(msg.path)) location.reload();
        break;
    }
  });
  socket.addEventListener('close', () => setTimeout(connect, 1000));
}

connect();
`

const clientTag = `<script type="module" src="` + routeClient + `"></script>`

// injectClient adds the client script tag to an HTML document, right after
// the opening head tag when there is one.
func injectClient(html string) string {
	lower := strings.ToLower(html)
	if i := strings.Index(lower, "<head"); i >= 0 {
		if end := strings.Index(lower[i:], ">"); end >= 0 {
			at := i + end + 1
			return html[:at] + "\n    " + clientTag + html[at:]
		}
	}
	return clientTag + "\n" + html
}

// defaultIndex is served when the renderer root has no index.html.
func defaultIndex(entry string) string {
	src := "/" + strings.TrimPrefix(entry, "/")
	return `<!doctype html>
<html>
  <head>
    <meta charset="UTF-8" />
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="` + src + `"></script>
  </body>
</html>
`
}
