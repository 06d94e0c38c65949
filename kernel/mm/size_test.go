package mm

import "testing"

func TestSize(t *testing.T) {
	specs := []struct {
		size     Size
		expStr   string
		expPages uint64
	}{
		{0, "0B", 0},
		{1, "1B", 1},
		{4 * Kb, "4KiB", 1},
		{6 * Mb, "6MiB", 1536},
		{Gb, "1GiB", 262144},
		{Mb + 1, "1048577B", 257},
	}

	for specIndex, spec := range specs {
		if got := spec.size.String(); got != spec.expStr {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.expStr, got)
		}
		if got := spec.size.Pages(); got != spec.expPages {
			t.Errorf("[spec %d] expected %d pages; got %d", specIndex, spec.expPages, got)
		}
	}
}
