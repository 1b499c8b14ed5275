package banner

import (
	"fmt"
	"io"
)

const art = `
      _           _       _
  ___| |__   __ _| |_ ___| |_ _ __ ___  __ _ _ __ ___
 / __| '_ \ / _` + "`" + ` | __/ __| __| '__/ _ \/ _` + "`" + ` | '_ ` + "`" + ` _ \
| (__| | | | (_| | |_\__ \ |_| | |  __/ (_| | | | | | |
 \___|_| |_|\__,_|\__|___/\__|_|  \___|\__,_|_| |_| |_|
`

// Print writes the startup banner and a short endpoint summary.
func Print(w io.Writer, addr, dbPath, providerName, brokerName string) {
	fmt.Fprint(w, art)
	fmt.Fprintf(w, "\n  listening   %s\n", addr)
	fmt.Fprintf(w, "  store       %s\n", dbPath)
	fmt.Fprintf(w, "  provider    %s\n", providerName)
	fmt.Fprintf(w, "  broker      %s\n", brokerName)
	fmt.Fprintf(w, "\n  POST /v1/chats/{id}/stream   start a generation\n")
	fmt.Fprintf(w, "  GET  /v1/chats/{id}/stream   resume the active stream\n")
	fmt.Fprintf(w, "  POST /v1/embeddings          embed text\n")
	fmt.Fprintf(w, "  GET  /metrics  GET /docs  GET /healthz\n\n")
}
