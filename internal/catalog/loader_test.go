package catalog

import (
	"strings"
	"testing"
)

const validCatalog = `code,name,category,tags,risk_tier,rate,min_balance,annual_fee,description
SAV-01,Steady Saver,savings,"savings,bonds",1,2.5,0,0,A low-risk savings account
INV-01,Growth Engine,investment,"stocks,etf",5,0,1000,25,An aggressive equity fund
RET-01,Golden Years,retirement,"retirement,funds",3,4.1,500,10,A balanced retirement plan
`

func TestParseValidCatalog(t *testing.T) {
	products, err := Parse(strings.NewReader(validCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(products))
	}

	first := products[0]
	if first.Code != "SAV-01" || first.Category != "savings" || first.RiskTier != 1 {
		t.Errorf("unexpected first product: %+v", first)
	}
	tags := first.TagList()
	if len(tags) != 2 || tags[0] != "savings" || tags[1] != "bonds" {
		t.Errorf("unexpected tags: %v", tags)
	}
	if products[1].AnnualFee != 25 {
		t.Errorf("expected annual fee 25, got %f", products[1].AnnualFee)
	}
}

func TestParseRejectsBadHeader(t *testing.T) {
	input := "code,name,category\nSAV-01,Steady Saver,savings\n"
	if _, err := Parse(strings.NewReader(input)); err == nil {
		t.Error("expected an error for a truncated header")
	}
}

func TestParseRejectsRiskTierOutOfRange(t *testing.T) {
	input := `code,name,category,tags,risk_tier,rate,min_balance,annual_fee,description
SAV-01,Steady Saver,savings,savings,6,0,0,0,desc
`
	_, err := Parse(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "risk_tier") {
		t.Errorf("expected a risk_tier error, got %v", err)
	}
}

func TestParseRejectsDuplicateCodes(t *testing.T) {
	input := `code,name,category,tags,risk_tier,rate,min_balance,annual_fee,description
SAV-01,Steady Saver,savings,savings,1,0,0,0,desc
SAV-01,Other Saver,savings,savings,2,0,0,0,desc
`
	_, err := Parse(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected a duplicate code error, got %v", err)
	}
}

func TestParseRejectsEmptyCatalog(t *testing.T) {
	input := "code,name,category,tags,risk_tier,rate,min_balance,annual_fee,description\n"
	if _, err := Parse(strings.NewReader(input)); err == nil {
		t.Error("expected an error for an empty catalog")
	}
}

func TestParseRejectsMissingCode(t *testing.T) {
	input := `code,name,category,tags,risk_tier,rate,min_balance,annual_fee,description
,Steady Saver,savings,savings,1,0,0,0,desc
`
	if _, err := Parse(strings.NewReader(input)); err == nil {
		t.Error("expected an error for a missing code")
	}
}
