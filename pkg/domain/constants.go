package domain

// DefaultNumScenes is the scene count requested when the user does not pick one.
const DefaultNumScenes = 3

// StylePresets are the visual styles offered before free-form input.
var StylePresets = []string{"Cinematic", "Anime", "Watercolor", "Pixel Art"}
