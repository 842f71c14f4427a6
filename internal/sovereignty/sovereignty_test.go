package sovereignty

import (
	"strings"
	"testing"
)

func TestSameRegionAlwaysAllowed(t *testing.T) {
	c := New()
	d := c.Validate(DataTransfer{Origin: "eu", Destination: "eu"})
	if !d.Allowed {
		t.Fatal("expected same-region transfer to be allowed")
	}
}

func TestStrictLocalizationDeniesPIIAbsentAdequacy(t *testing.T) {
	c := New()
	d := c.Validate(DataTransfer{Origin: "cn", Destination: "us", IsPII: true})
	if d.Allowed {
		t.Fatal("expected PII transfer from a strict-localization region to be denied")
	}
}

func TestCNToUSPIIDeniedCitingPIPL(t *testing.T) {
	c := New()
	d := c.Validate(DataTransfer{DataID: "d1", Origin: "cn", Destination: "us", IsPII: true})
	if d.Allowed {
		t.Fatal("expected CN -> US PII transfer to be denied")
	}
	if !strings.Contains(d.Reason, "PIPL") {
		t.Errorf("expected reason to cite PIPL, got %q", d.Reason)
	}
}

func TestEUToUSPersonalAllowedUnderDPF(t *testing.T) {
	c := New()
	d := c.Validate(DataTransfer{DataID: "d2", Origin: "eu", Destination: "us", DataType: DataTypePersonal, IsPII: true})
	if !d.Allowed {
		t.Fatalf("expected EU -> US personal data transfer to be allowed under adequacy, got reason: %s", d.Reason)
	}
}

func TestHealthDataRequiresSafeguards(t *testing.T) {
	c := New()
	d := c.Validate(DataTransfer{Origin: "eu", Destination: "br", DataType: DataTypeHealth})
	if !d.Allowed {
		t.Fatal("expected health data transfer to be allowed with safeguards")
	}
	if len(d.Safeguards) == 0 {
		t.Error("expected mandatory safeguards to be listed")
	}
}

func TestDefaultAllowsUnrestrictedData(t *testing.T) {
	c := New()
	d := c.Validate(DataTransfer{Origin: "us", Destination: "jp", DataType: DataTypeGeneral})
	if !d.Allowed {
		t.Fatal("expected default-case transfer to be allowed")
	}
}

func TestGlobalOriginAlwaysAllowed(t *testing.T) {
	c := New()
	d := c.Validate(DataTransfer{Origin: GlobalRegion, Destination: "cn", IsPII: true})
	if !d.Allowed {
		t.Fatal("expected global-origin transfer to always be allowed")
	}
}

func TestPersonalWithoutAdequacyOrLocalizationRequiresSCCs(t *testing.T) {
	c := New()
	d := c.Validate(DataTransfer{Origin: "br", Destination: "jp", DataType: DataTypePersonal})
	if d.Allowed {
		t.Fatal("expected personal data without adequacy to be denied")
	}
	foundSCC := false
	for _, s := range d.Safeguards {
		if s == "SCCs" {
			foundSCC = true
		}
	}
	if !foundSCC {
		t.Error("expected SCCs to be among the required safeguards")
	}
}
