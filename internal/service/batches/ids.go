package batches

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const batchIDDateLayout = "060102"

// generateBatchID builds FCX-<PFX>-<YYMMDD>-<6 chars>.
func generateBatchID(cropType string, now time.Time) string {
	prefix := "CRP"
	if letters := []rune(strings.TrimSpace(cropType)); len(letters) >= 3 {
		prefix = strings.ToUpper(string(letters[:3]))
	}
	return fmt.Sprintf("FCX-%s-%s-%s", prefix, now.Format(batchIDDateLayout), randomToken(6))
}

func splitChildID(parentID string) string {
	return parentID + "-S" + randomToken(3)
}

func randomToken(n int) string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:n])
}
