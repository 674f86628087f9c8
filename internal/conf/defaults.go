// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "c7-data-migrator")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "migrator.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", time.Sunday)

	viper.SetDefault("ledger.sqlite.enabled", true)
	viper.SetDefault("ledger.sqlite.path", "migrator.db")
	viper.SetDefault("ledger.mysql.enabled", false)
	viper.SetDefault("ledger.mysql.host", "localhost")
	viper.SetDefault("ledger.mysql.port", "3306")
	viper.SetDefault("ledger.tableprefix", "")
	viper.SetDefault("ledger.saveskipreason", true)
	viper.SetDefault("ledger.listskippedrequiresreason", true)

	viper.SetDefault("source.sqlite.enabled", false)
	viper.SetDefault("source.mysql.enabled", false)
	viper.SetDefault("source.mysql.host", "localhost")
	viper.SetDefault("source.mysql.port", "3306")

	viper.SetDefault("target.baseurl", "http://localhost:8080")
	viper.SetDefault("target.timeout", 30*time.Second)

	viper.SetDefault("migration.batchsize", 100)
	viper.SetDefault("migration.pagesize", 500)
	viper.SetDefault("migration.entitytypes", []string{})
	viper.SetDefault("migration.skipvalidation", false)
	viper.SetDefault("migration.compensationpolicy", "cancel")
}
