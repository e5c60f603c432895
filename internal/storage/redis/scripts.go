package redis

const (
	// advanceMarkerScript atomically raises a pair's marker and returns the
	// previous value, or nil when the pair had no marker.
	advanceMarkerScript = `
local marker_key = KEYS[1]     -- {prefix}:marker:{accountID}:{deviceID}

local at = tonumber(ARGV[1])
local ttl_seconds = tonumber(ARGV[2])

local previous = redis.call('GET', marker_key)

-- Markers never move backwards
if (not previous) or tonumber(previous) < at then
  redis.call('SET', marker_key, ARGV[1])
end

-- Refresh TTL so idle pairs eventually expire
if ttl_seconds > 0 then
  redis.call('EXPIRE', marker_key, ttl_seconds)
end

if previous then
  return previous
end
return false
`
)
