package banner

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"pagedesk/pkg/config"
)

const banner = `
 ____                  ____            _    
|  _ \ __ _  __ _  ___|  _ \  ___  ___| | __
| |_) / _' |/ _' |/ _ \ | | |/ _ \/ __| |/ /
|  __/ (_| | (_| |  __/ |_| |  __/\__ \   < 
|_|   \__,_|\__, |\___|____/ \___||___/_|\_\
            |___/                           
`

// PrintWithEff prints the banner to stdout.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	Fprint(os.Stdout, eff, version)
}

// Fprint writes the banner and the startup checklist to w.
func Fprint(w io.Writer, eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}
	cfg := eff.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintf(w, "Listen:   %s\n", addr)
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config:   %s\n", src)
	fmt.Fprintf(w, "Pages:    %d\n", len(cfg.Pages))
	fmt.Fprintf(w, "Capacity: %s messages per page\n", humanize.Comma(int64(cfg.Store.MaxMessagesPerPage)))

	fmt.Fprintln(w, "\n== Production? =================================================")
	if cfg.Messenger.VerifyToken != "" {
		fmt.Fprintln(w, "- Webhook verify token: OK")
	} else {
		fmt.Fprintln(w, "- Webhook verify token: MISSING (subscriptions will be rejected)")
	}
	if cfg.Messenger.AppSecret != "" {
		fmt.Fprintln(w, "- App secret: OK (signatures checked)")
	} else {
		fmt.Fprintln(w, "- App secret: MISSING (webhook signatures not checked)")
	}
	if n := len(cfg.Security.APIKeys.Admin); n > 0 {
		fmt.Fprintf(w, "- Admin API keys: OK (%d)\n", n)
	} else {
		fmt.Fprintln(w, "- Admin API keys: MISSING (admin endpoints unreachable)")
	}
	if n := len(cfg.Sessions); n > 0 {
		fmt.Fprintf(w, "- Sessions: %d configured\n", n)
	} else {
		fmt.Fprintln(w, "- Sessions: none (the /api surface will answer 401)")
	}
	if cfg.Server.TLS.CertFile != "" {
		fmt.Fprintln(w, "- TLS: enabled")
	} else {
		fmt.Fprintln(w, "- TLS: disabled (terminate TLS upstream)")
	}
	if cfg.WebhookLog.Path != "" {
		fmt.Fprintf(w, "- Webhook log: %s\n", cfg.WebhookLog.Path)
	} else {
		fmt.Fprintln(w, "- Webhook log: in memory")
	}
	if cfg.Retention.Enabled {
		fmt.Fprintf(w, "- Retention: enabled (cron=%s period=%s)\n", cfg.Retention.Cron, cfg.Retention.Period)
	} else {
		fmt.Fprintln(w, "- Retention: disabled")
	}
	fmt.Fprintln(w)
}
