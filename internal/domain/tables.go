package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	// Commerce
	&Order{},
}
