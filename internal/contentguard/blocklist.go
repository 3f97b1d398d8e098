package contentguard

// Blocklist is the built-in English and Filipino term list.
var Blocklist = []string{
	// profanity
	"fuck", "fucking", "fucker", "motherfucker", "shit", "bullshit", "bitch",
	"asshole", "ass", "bastard", "dick", "dickhead", "cunt", "crap", "damn you",
	"putangina", "putang ina", "tangina", "tang ina", "puta", "gago", "gaga",
	"ulol", "tarantado", "bobo", "tanga", "leche", "punyeta", "hayop ka",
	"kupal", "pakyu", "pakshet", "buwisit",

	// sexual content
	"porn", "porno", "nudes", "send nudes", "horny", "blowjob", "pussy",
	"slut", "whore", "hookup for money", "kantot", "jakol", "chupa", "libog",
	"malibog", "pokpok", "titi", "puke", "iyot",

	// hate speech
	"retard", "retarded", "faggot", "fag", "tranny", "bakla ka", "bayot",
	"negro", "unggoy ka",

	// threats
	"kill yourself", "kys", "i will kill you", "rape", "papatayin kita",
	"patayin kita", "babarilin kita", "sasaksakin kita",

	// drugs and scam solicitation
	"shabu", "cocaine", "meth", "marijuana for sale", "weed for sale",
	"send money", "cash app", "gcash me", "padala ka ng pera", "investment scam",
	"double your money", "crypto giveaway",
}
