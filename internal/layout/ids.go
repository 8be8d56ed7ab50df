package layout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// boxNamespace seeds name-based box ids so identical input yields identical
// ids across runs.
var boxNamespace = uuid.MustParse("6f1d3c9e-2b7a-5d40-9c1e-0a8f4b7e3d21")

// RawID returns the id of the index-th detection on page.
func RawID(page, index int) string {
	return uuid.NewSHA1(boxNamespace, []byte(fmt.Sprintf("page:%d:box:%d", page, index))).String()
}

// MergedID returns a fresh id derived from the ids of the merged members.
func MergedID(members []string) string {
	ids := append([]string(nil), members...)
	sort.Strings(ids)
	return uuid.NewSHA1(boxNamespace, []byte("merge:"+strings.Join(ids, ","))).String()
}
