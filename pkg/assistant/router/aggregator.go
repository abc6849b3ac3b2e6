package router

import (
	"strings"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/i18n"
	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/modules"
)

// Aggregate merges per-module results into one reply, preserving
// classification order. Failed runs contribute an apology fragment naming
// the module. Consecutive identical fragments collapse to one. The function
// is pure: same inputs, same output.
func Aggregate(lang string, results []RunResult, registry *modules.Registry) string {
	fragments := make([]string, 0, len(results))
	for _, res := range results {
		var frag string
		if res.Failed {
			name := res.IntentID
			if mod, ok := registry.Get(res.IntentID); ok {
				name = mod.Info().DisplayName(lang)
			}
			frag = i18n.Tf(lang, "bot.module_failed", name)
		} else {
			frag = strings.TrimSpace(res.Text)
		}
		if frag == "" {
			continue
		}
		if len(fragments) > 0 && fragments[len(fragments)-1] == frag {
			continue
		}
		fragments = append(fragments, frag)
	}

	if len(fragments) == 0 {
		return i18n.T(lang, "bot.all_failed")
	}
	return strings.Join(fragments, "\n\n")
}
