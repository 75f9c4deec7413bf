package redis

// Every key the bot writes lives under this prefix so one Redis can serve
// other tenants.
const keyPrefix = "aitrader:"

func priceKey(symbol string) string      { return keyPrefix + "price:" + symbol }
func lockKey(key string) string          { return keyPrefix + "lock:" + key }
func rateLimitKey(key string) string     { return keyPrefix + "ratelimit:" + key }
func eventsChannel(symbol string) string { return keyPrefix + "events:" + symbol }
func eventsStream(symbol string) string  { return keyPrefix + "stream:events:" + symbol }
