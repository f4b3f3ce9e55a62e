package banner

import (
	"fmt"
	"strings"
)

const banner = `
       _                 _     _      _
   ___| | ___  _   _  __| | __| |_ __(_)_   _____
  / __| |/ _ \| | | |/ _' |/ _' | '__| \ \ / / _ \
 | (__| | (_) | |_| | (_| | (_| | |  | |\ V /  __/
  \___|_|\___/ \__,_|\__,_|\__,_|_|  |_| \_/ \___|

`

type StartupInfo struct {
	Version  string
	Addr     string
	Backend  string
	LogLevel string
}

func PrintBanner(info StartupInfo) {
	fmt.Print(Render(info))
}

func Render(info StartupInfo) string {
	var b strings.Builder
	b.WriteString(banner)
	fmt.Fprintf(&b, "                                   v%s\n\n", info.Version)

	width := 50
	fmt.Fprintf(&b, "  %s\n", strings.Repeat("─", width))
	fmt.Fprintf(&b, "  → Address:   http://%s\n", formatAddr(info.Addr))
	fmt.Fprintf(&b, "  → Storage:   %s\n", info.Backend)
	fmt.Fprintf(&b, "  → Log Level: %s\n", info.LogLevel)
	fmt.Fprintf(&b, "  %s\n\n", strings.Repeat("─", width))
	return b.String()
}

func formatAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
