package pivot

import (
	"regexp"
	"strings"

	"github.com/clasier/catdb/pkg/store"
	"github.com/gnames/gnuuid"
)

var nonAlnum = regexp.MustCompile(`[^0-9A-Za-z]+`)

// hashLen is the length of the suffix that keeps shortened names unique.
const hashLen = 8

// ColumnName converts an attribute name into a storage-safe column
// identifier. Runs of non-alphanumeric characters become a single
// underscore, the result is lower-cased, and a leading digit gets an
// underscore prefix.
//
//	"Curriculum Areas of Knowledge" -> "curriculum_areas_of_knowledge"
//	"2024 Special"                  -> "_2024_special"
//
// Names longer than store.MaxIdentifierLen keep their head and end with
// "_" plus the first hex digits of a UUID v5 of the full name.
//
// The function is part of the storage contract: changing it renames
// columns of existing databases.
func ColumnName(name string) string {
	res := nonAlnum.ReplaceAllString(strings.TrimSpace(name), "_")
	res = strings.ToLower(res)
	if res != "" && res[0] >= '0' && res[0] <= '9' {
		res = "_" + res
	}
	if len(res) <= store.MaxIdentifierLen {
		return res
	}
	sum := gnuuid.New(res).String()[:hashLen]
	return res[:store.MaxIdentifierLen-hashLen-1] + "_" + sum
}
