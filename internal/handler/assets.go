package handler

import _ "embed"

//go:embed assets/login.html
var loginHTML []byte

//go:embed assets/dashboard.html
var dashboardHTML []byte
