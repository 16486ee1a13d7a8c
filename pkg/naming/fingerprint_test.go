package naming

import (
	"sync"
	"testing"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
)

func TestFingerprint(t *testing.T) {
	fp := NewFingerprinter()
	num := ir.NewPrimitive(ir.Number)

	ab := ir.NewObject(req("a", str()), opt("b", num))
	ba := ir.NewObject(opt("b", num), req("a", str()))
	if fp.Fingerprint(ab) != fp.Fingerprint(ba) {
		t.Errorf("field order should not change the fingerprint")
	}

	required := ir.NewObject(req("a", str()), req("b", num))
	if fp.Fingerprint(ab) == fp.Fingerprint(required) {
		t.Errorf("required flags should change the fingerprint")
	}

	if fp.Fingerprint(ir.NewRef("AB", ab)) != fp.Fingerprint(ab) {
		t.Errorf("a reference should hash as its target")
	}

	xy := ir.NewLiteralUnion(ir.Literal{Kind: ir.String, Raw: `"x"`}, ir.Literal{Kind: ir.String, Raw: `"y"`})
	yx := ir.NewLiteralUnion(ir.Literal{Kind: ir.String, Raw: `"y"`}, ir.Literal{Kind: ir.String, Raw: `"x"`})
	if fp.Fingerprint(xy) != fp.Fingerprint(yx) {
		t.Errorf("literal order should not change the fingerprint")
	}

	if fp.Fingerprint(ir.NewArray(str())) == fp.Fingerprint(ir.NewArray(num)) {
		t.Errorf("array element types should change the fingerprint")
	}
	if fp.Fingerprint(nil) != "absent" {
		t.Errorf("nil shapes should hash as absent")
	}
}

func TestFingerprintConcurrent(t *testing.T) {
	fp := NewFingerprinter()
	shape := nestedQuery()
	want := NewFingerprinter().Fingerprint(shape)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := fp.Fingerprint(shape); got != want {
				t.Errorf("Fingerprint = %s, expected %s", got, want)
			}
		}()
	}
	wg.Wait()
}
