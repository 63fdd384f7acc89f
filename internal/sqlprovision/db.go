package sqlprovision

import "database/sql"

// openSQL is swapped for a sqlmock-backed opener in tests; production
// code always goes through database/sql's registered drivers.
var openSQL = sql.Open
