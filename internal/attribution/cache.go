package attribution

// AccountCache maps account id to display name.
type AccountCache map[int64]string

// NewAccountCache indexes the given accounts by id.
func NewAccountCache(accounts []Account) AccountCache {
	cache := make(AccountCache, len(accounts))
	for _, a := range accounts {
		cache[a.ID] = a.Name
	}
	return cache
}

// Name returns the display name of id, or "" when unknown.
func (c AccountCache) Name(id int64) string {
	return c[id]
}

// DeviceCache maps device id to its metadata.
type DeviceCache map[int64]Device

// NewDeviceCache indexes the given devices by id.
func NewDeviceCache(devices []Device) DeviceCache {
	cache := make(DeviceCache, len(devices))
	for _, d := range devices {
		cache[d.ID] = d
	}
	return cache
}

// Lookup returns the device with the given id.
func (c DeviceCache) Lookup(id int64) (Device, bool) {
	d, ok := c[id]
	return d, ok
}
