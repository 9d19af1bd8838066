package fixtures

// Rating is a club's attack and defense strength on a roughly 2.5 to 5.0 scale.
type Rating struct {
	Attack  float64 `mapstructure:"attack" json:"attack"`
	Defense float64 `mapstructure:"defense" json:"defense"`
}

// Strength is the mean of attack and defense.
func (r Rating) Strength() float64 {
	return (r.Attack + r.Defense) / 2
}

// Ratings maps club names, as the calendar spells them, to strength.
type Ratings map[string]Rating

// DefaultRating applies to clubs missing from the table.
var DefaultRating = Rating{Attack: 3.0, Defense: 3.0}

var laLigaRatings = Ratings{
	"Real Madrid":        {5.0, 4.5},
	"FC Barcelona":       {4.8, 4.2},
	"Atlético de Madrid": {4.0, 4.8},
	"Athletic Club":      {4.2, 4.0},
	"Real Sociedad":      {4.0, 3.8},
	"Villarreal CF":      {3.8, 3.8},
	"Real Betis":         {3.8, 3.5},
	"Valencia CF":        {3.5, 3.5},
	"Sevilla FC":         {3.5, 3.8},
	"Girona FC":          {3.5, 3.3},
	"RC Celta":           {3.5, 3.0},
	"RCD Mallorca":       {3.3, 3.5},
	"Rayo Vallecano":     {3.3, 3.2},
	"C.A. Osasuna":       {3.2, 3.5},
	"Getafe CF":          {2.8, 3.8},
	"UD Las Palmas":      {3.0, 2.8},
	"Deportivo Alavés":   {2.8, 3.0},
	"RCD Espanyol":       {2.8, 3.0},
	"CD Leganés":         {2.5, 3.2},
	"Real Valladolid":    {2.5, 2.8},
}

// DefaultRatings returns a copy of the built-in LaLiga table.
func DefaultRatings() Ratings {
	out := make(Ratings, len(laLigaRatings))
	for k, v := range laLigaRatings {
		out[k] = v
	}
	return out
}
