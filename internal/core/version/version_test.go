package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	bi := Info("harvest-crawl")
	if bi.Service != "harvest-crawl" || bi.Version == "" || !strings.HasPrefix(bi.Go, "go") {
		t.Fatalf("Info = %+v", bi)
	}
	if got := UserAgent("harvest-crawl"); got != "harvest-crawl/"+bi.Version {
		t.Fatalf("UserAgent = %q", got)
	}
}
