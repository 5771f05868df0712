package utils

import (
	"time"
)

// Messaging channel constants
const (
	// WhatsAppUserServer is the JID server for individual chats
	WhatsAppUserServer = "s.whatsapp.net"

	// WhatsAppGroupServer is the JID server for group chats
	WhatsAppGroupServer = "g.us"

	// SendTimeout bounds a single send on the messaging channel (10 seconds)
	SendTimeout = 10 * time.Second

	// MexicoCountryCode is prepended by the direct-send path to 10-digit local numbers
	MexicoCountryCode = "52"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Lead defaults used when an inbound message creates a lead
const (
	LeadSourceWhatsApp    = "WhatsApp"
	LeadStateNew          = "nuevo"
	DefaultLeadTrigger    = "NuevoLead"
	LyricDeliveredLabel   = "LetraEnviada"
	LyricDeliveredTrigger = "LetraEnviada"
)
