package sqlassets

import _ "embed"

//go:embed schema/master/stores.sql
var StoresSQL string

//go:embed schema/master/platform_users.sql
var PlatformUsersSQL string

//go:embed schema/master/shared_tables.sql
var SharedTablesSQL string

//go:embed schema/master/defaults_seed.sql
var DefaultsSeedSQL string

//go:embed schema/store_space/store_tables.sql
var StoreTablesSQL string
