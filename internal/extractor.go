package internal

import (
	"LinkGrab/internal/scanner"

	"github.com/sirupsen/logrus"
)

// ExtractLinks is the per-frame script: keep hrefs matching p, deduplicated,
// in first-seen order.
func ExtractLinks(links []string, p Pattern) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0)
	for _, href := range links {
		if !p.Match(href) {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		out = append(out, href)
	}
	return out
}

// FrameScriptFor binds a pattern into a script the host can run in every frame.
func FrameScriptFor(p Pattern) scanner.FrameScript {
	return func(links []string) []string { return ExtractLinks(links, p) }
}

// MergeFrames unions per-frame results by exact string equality.
// Failed frames contribute nothing.
func MergeFrames(results []scanner.FrameResult, stats *AppStats) []string {
	seen := make(map[string]struct{})
	var merged []string
	for _, r := range results {
		if r.Err != nil {
			if stats != nil {
				stats.FramesFailed.Add(1)
			}
			logrus.WithFields(logrus.Fields{"frame": r.FrameURL, "err": r.Err}).Debug("frame skipped")
			continue
		}
		if stats != nil {
			stats.FramesScanned.Add(1)
		}
		for _, u := range r.URLs {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			merged = append(merged, u)
		}
	}
	return merged
}
