package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"

	"pagedesk/internal/retention"
	"pagedesk/pkg/store"
	"pagedesk/pkg/webhooklog"
)

func init() {
	webhooksCmd.Flags().Int("limit", 20, "number of deliveries to list")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(webhooksCmd)
	rootCmd.AddCommand(purgeCmd)
}

type statsResponse struct {
	Pages        []store.PageStats `json:"pages"`
	PageCapacity int               `json:"pageCapacity"`
	Queue        struct {
		Depth    int    `json:"depth"`
		Capacity int    `json:"capacity"`
		Lanes    int    `json:"lanes"`
		Dropped  uint64 `json:"dropped"`
		InFlight int64  `json:"inFlight"`
		Paused   bool   `json:"paused"`
	} `json:"queue"`
	WebhookLog *struct {
		Deliveries int  `json:"deliveries"`
		InMemory   bool `json:"inMemory"`
	} `json:"webhookLog"`
	Retention *retention.Report `json:"retention"`
}

func adminGet(cmd *cobra.Command, path string, out any) error {
	s, err := settingsFor(cmd)
	if err != nil {
		return err
	}
	headers, err := adminHeaders(s)
	if err != nil {
		return err
	}
	resp, err := do(s, fasthttp.MethodGet, path, headers, nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.errorf()
	}
	return json.Unmarshal(resp.Body, out)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-page counts and queue state from /admin/stats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var st statsResponse
		if err := adminGet(cmd, "/admin/stats", &st); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "queue: %s/%s queued, %d lanes, %s in flight, %s dropped",
			humanize.Comma(int64(st.Queue.Depth)), humanize.Comma(int64(st.Queue.Capacity)),
			st.Queue.Lanes, humanize.Comma(st.Queue.InFlight), humanize.Comma(int64(st.Queue.Dropped)))
		if st.Queue.Paused {
			fmt.Fprint(w, " (paused)")
		}
		fmt.Fprintln(w)
		if st.WebhookLog != nil {
			where := "disk"
			if st.WebhookLog.InMemory {
				where = "memory"
			}
			fmt.Fprintf(w, "webhook log: %s deliveries (%s)\n", humanize.Comma(int64(st.WebhookLog.Deliveries)), where)
		}
		if st.Retention != nil {
			fmt.Fprintf(w, "last purge cutoff: %s, %d purged\n", st.Retention.Cutoff.Format(time.RFC3339), st.Retention.Purged)
		}

		tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "PAGE\tMESSAGES\tCONVERSATIONS\tUNREAD\tEVICTED\tLAST EVENT")
		for _, p := range st.Pages {
			last := "-"
			if p.LastEvent > 0 {
				last = humanize.Time(time.UnixMilli(p.LastEvent))
			}
			fmt.Fprintf(tw, "%s\t%s/%s\t%d\t%d\t%s\t%s\n", p.PageID,
				humanize.Comma(int64(p.Messages)), humanize.Comma(int64(p.Capacity)),
				p.Conversations, p.Unread, humanize.Comma(int64(p.Evicted)), last)
		}
		return tw.Flush()
	},
}

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "List recent webhook deliveries from /admin/webhooks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		var out struct {
			Deliveries []webhooklog.Delivery `json:"deliveries"`
		}
		if err := adminGet(cmd, fmt.Sprintf("/admin/webhooks?limit=%d", limit), &out); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tRECEIVED\tEVENTS\tSTATUS\tPROCESSED\tFAILED\tSIZE")
		for _, d := range out.Deliveries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%s\n", d.ID, humanize.Time(d.ReceivedAt),
				d.Events, d.Status, d.Processed, d.Failed, humanize.Bytes(uint64(d.Bytes)))
		}
		return tw.Flush()
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Run webhook log retention now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settingsFor(cmd)
		if err != nil {
			return err
		}
		headers, err := adminHeaders(s)
		if err != nil {
			return err
		}
		resp, err := do(s, fasthttp.MethodPost, "/admin/jobs/purge", headers, nil)
		if err != nil {
			return err
		}
		if !resp.ok() {
			return resp.errorf()
		}
		var rep retention.Report
		if err := json.Unmarshal(resp.Body, &rep); err != nil {
			return err
		}
		verb := "purged"
		if rep.DryRun {
			verb = "would purge"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d deliveries older than %s\n", verb, rep.Purged, rep.Matched, rep.Cutoff.Format(time.RFC3339))
		return nil
	},
}
