package db

import (
	"fmt"
	"os"
	"strings"
)

// Partition key prefixes for the compliance table.
const (
	KindCustomer = "CUSTOMER"
	KindShop     = "SHOP"
)

func ComplianceTableName() string {
	return strings.TrimSpace(os.Getenv("COMPLIANCE_TABLE"))
}

// RecordPK builds the partition key for a compliance record.
// PK = <KIND>#<id>
func RecordPK(kind, id string) string {
	return fmt.Sprintf("%s#%s", kind, id)
}
