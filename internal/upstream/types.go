package upstream

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Credentials identify one tenant against the upstream API
type Credentials struct {
	APIURL     string
	Identifier string
	Secret     string
}

// DomainRecord is one raw domain entry as returned by the upstream API.
// Numeric and date fields arrive as strings and are normalized later,
// at the mapping boundary.
type DomainRecord struct {
	ID               string `json:"id"`
	DomainName       string `json:"domainname"`
	Registrar        string `json:"registrar"`
	RegistrationDate string `json:"regdate"`
	ExpiryDate       string `json:"expirydate"`
	NextDueDate      string `json:"nextduedate"`
	Status           string `json:"status"`
	RecurringAmount  string `json:"recurringamount"`
	Currency         string `json:"currencycode"`
	Notes            string `json:"notes"`
}

// DomainsPage is one decoded page of the upstream domain inventory
type DomainsPage struct {
	Domains []DomainRecord
	// TotalResults is the upstream's reported total. Informational only:
	// the upstream may omit or undercount it.
	TotalResults int
}

// Nameservers is the decoded per-domain nameserver payload.
// Empty slots are empty strings here; the store maps them to NULL.
type Nameservers struct {
	NS1 string `json:"ns1"`
	NS2 string `json:"ns2"`
	NS3 string `json:"ns3"`
	NS4 string `json:"ns4"`
	NS5 string `json:"ns5"`
}

// flexInt tolerates numbers that the upstream serializes either as
// JSON numbers or as quoted strings ("totalresults": "1542").
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty number")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid numeric string %q: %w", s, err)
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// domainsEnvelope is the wire shape of a GetClientsDomains response
type domainsEnvelope struct {
	Result       string  `json:"result"`
	Message      string  `json:"message"`
	TotalResults flexInt `json:"totalresults"`
	Domains      *struct {
		Domain []DomainRecord `json:"domain"`
	} `json:"domains"`
}

// nameserversEnvelope is the wire shape of a DomainGetNameservers response
type nameserversEnvelope struct {
	Result  string `json:"result"`
	Message string `json:"message"`
	Nameservers
}
