package geodatatest

import "github.com/lehigh-university-libraries/placealign/internal/geodata"

// Well-known ids of the fixture.
const (
	FranceID          int64 = 3017382
	GermanyID         int64 = 2921044
	PakistanID        int64 = 1168579
	ToulouseID        int64 = 2972315
	ToulouseAdminID   int64 = 6453974
	SaintJeanID       int64 = 2979363
	ParisID           int64 = 2988507
	GivryID           int64 = 3016078
	VanvesID          int64 = 2970797
	ToulonID          int64 = 2972328
	BarSurSeineID     int64 = 3034005
	ReimsID           int64 = 2984114
	ReimsArrondID     int64 = 2984113
	CormeillesID      int64 = 3023357
	ReunionID         int64 = 6690283
	AisneRiverID      int64 = 3038224
	RhoneRiverID      int64 = 2983752
	VieuxRhoneID      int64 = 2969183
	CormeillesAirport int64 = 6694498
	BerlinID          int64 = 2950159
	MunichID          int64 = 2867714
	FrankfurtMainID   int64 = 2925533
	FrankfurtOderID   int64 = 2925535
	LahoreID          int64 = 1172451
)

func admin(code, name, a1, a2, a4 string) geodata.AdminRow {
	return geodata.AdminRow{Name: name, FeatureCode: code, CountryCode: "FR", Admin1: a1, Admin2: a2, Admin4: a4}
}

func place(id int64, name, fclass, fcode, cc, a1, a2, a4 string, lat, lon float64) geodata.PlaceRow {
	return geodata.PlaceRow{
		ID: id, Name: name, FeatureClass: fclass, FeatureCode: fcode, CountryCode: cc,
		Admin1: a1, Admin2: a2, Admin4: a4, Latitude: lat, Longitude: lon,
	}
}

// Fixture returns a small French gazetteer with a few foreign places.
func Fixture() *Memory {
	return &Memory{
		Admin: []geodata.AdminRow{
			admin("ADM1", "Bourgogne-Franche-Comté", "27", "", ""),
			admin("ADM1", "Île-de-France", "11", "", ""),
			admin("ADM1", "Grand Est", "44", "", ""),
			admin("ADM1", "Nouvelle-Aquitaine", "75", "", ""),
			admin("ADM1", "Occitanie", "76", "", ""),
			admin("ADM1", "Provence-Alpes-Côte d'Azur", "93", "", ""),
			admin("ADM1", "Auvergne-Rhône-Alpes", "84", "", ""),

			admin("ADM2", "Département de Saône-et-Loire", "27", "71", ""),
			admin("ADM2", "Département des Hauts-de-Seine", "11", "92", ""),
			admin("ADM2", "Département de la Marne", "44", "51", ""),
			admin("ADM2", "Département du Cantal", "84", "15", ""),
			admin("ADM2", "Département de l'Aube", "44", "10", ""),
			admin("ADM2", "Département de la Creuse", "75", "23", ""),
			admin("ADM2", "Paris", "11", "75", ""),
			admin("ADM2", "Département du Var", "93", "83", ""),
			admin("ADM2", "Département de la Charente-Maritime", "75", "17", ""),
			admin("ADM2", "Département de la Haute-Garonne", "76", "31", ""),
			admin("ADM2", "Département du Val-d'Oise", "11", "95", ""),
			admin("ADM2", "Département des Bouches-du-Rhône", "93", "13", ""),

			admin("ADM4", "Givry", "27", "71", "71221"),
			admin("ADM4", "Anzy-le-Duc", "27", "71", "71009"),
			admin("ADM4", "Mesvres", "27", "71", "71297"),
			admin("ADM4", "Vanves", "11", "92", "92075"),
			admin("ADM4", "Paris", "11", "75", "75056"),
			admin("ADM4", "Toulon", "93", "83", "83137"),
			admin("ADM4", "Bar-sur-Seine", "44", "10", "10034"),
			admin("ADM4", "Saint-Jean-d'Angély", "75", "17", "17347"),
			admin("ADM4", "Toulouse", "76", "31", "31555"),
			admin("ADM4", "Crocq", "75", "23", "23069"),
			admin("ADM4", "Reims", "44", "51", "51454"),
			admin("ADM4", "Sainte-Menehould", "44", "51", "51507"),
			admin("ADM4", "Cormeilles-en-Vexin", "11", "95", "95183"),
			// a commune of the Orne sharing its name with a department
			admin("ADM4", "Aube", "28", "61", "61008"),
		},
		Countries: []geodata.CountryName{
			{PlaceID: FranceID, CountryCode: "FR", Name: "France", PlaceName: "Republic of France", Latitude: 46, Longitude: 2},
			{PlaceID: FranceID, CountryCode: "FR", Name: "Gaule", PlaceName: "Republic of France", Historic: true},
			{PlaceID: GermanyID, CountryCode: "DE", Name: "Allemagne", PlaceName: "Federal Republic of Germany", Latitude: 51.5, Longitude: 10.5},
			{PlaceID: PakistanID, CountryCode: "PK", Name: "Pakistan", PlaceName: "Islamic Republic of Pakistan", Latitude: 30, Longitude: 70},
		},
		Rows: []geodata.PlaceRow{
			place(GivryID, "Givry", "P", "PPL", "FR", "27", "71", "71221", 46.78, 4.74),
			place(3037900, "Anzy-le-Duc", "P", "PPL", "FR", "27", "71", "71009", 46.32, 4.06),
			place(2994144, "Mesvres", "P", "PPL", "FR", "27", "71", "71297", 46.86, 4.24),
			place(VanvesID, "Vanves", "P", "PPL", "FR", "11", "92", "92075", 48.82, 2.29),
			place(ParisID, "Paris", "P", "PPLC", "FR", "11", "75", "75056", 48.85, 2.35),
			place(ToulonID, "Toulon", "P", "PPLA2", "FR", "93", "83", "83137", 43.12, 5.93),
			place(BarSurSeineID, "Bar-sur-Seine", "P", "PPL", "FR", "44", "10", "10034", 48.11, 4.37),
			place(SaintJeanID, "Saint-Jean-d'Angély", "P", "PPL", "FR", "75", "17", "17347", 45.95, -0.52),
			place(6455416, "Saint-Jean-d'Angély", "A", "ADM4", "FR", "75", "17", "17347", 45.94, -0.51),
			place(ToulouseAdminID, "Toulouse", "A", "ADM4", "FR", "76", "31", "31555", 43.6, 1.43),
			place(ToulouseID, "Toulouse", "P", "PPLA", "FR", "76", "31", "31555", 43.6, 1.44),
			place(3022617, "Crocq", "P", "PPL", "FR", "75", "23", "23069", 45.86, 2.36),
			place(ReimsID, "Reims", "P", "PPL", "FR", "44", "51", "51454", 49.25, 4.03),
			place(ReimsArrondID, "Arrondissement de Reims", "A", "ADM3", "FR", "44", "51", "", 49.25, 4.03),
			place(2976341, "Sainte-Menehould", "P", "PPL", "FR", "44", "51", "51507", 49.09, 4.9),
			place(CormeillesID, "Cormeilles-en-Vexin", "P", "PPL", "FR", "11", "95", "95183", 49.12, 2.02),
			place(ReunionID, "Réunion", "A", "ADM1", "RE", "RE", "", "", -21.1, 55.6),

			place(AisneRiverID, "Aisne", "H", "STM", "FR", "44", "51", "", 49.43, 2.84),
			place(RhoneRiverID, "Rhône", "H", "STM", "FR", "93", "13", "", 43.33, 4.84),
			place(VieuxRhoneID, "Vieux Rhône", "H", "STM", "FR", "93", "13", "", 43.4, 4.7),
			place(CormeillesAirport, "Aéroport de Cormeilles-en-Vexin", "S", "AIRP", "FR", "11", "95", "", 49.1, 2.04),

			place(BerlinID, "Berlin", "P", "PPLC", "DE", "16", "00", "", 52.52, 13.4),
			place(MunichID, "Munich", "P", "PPLA", "DE", "02", "091", "", 48.13, 11.57),
			place(FrankfurtMainID, "Frankfurt am Main", "P", "PPLA2", "DE", "05", "064", "", 50.11, 8.68),
			place(FrankfurtOderID, "Frankfurt (Oder)", "P", "PPLA3", "DE", "11", "00", "", 52.34, 14.55),
			place(LahoreID, "Lahore", "P", "PPLA", "PK", "04", "", "", 31.55, 74.34),
		},
		Alternates: []Alternate{
			{PlaceID: BerlinID, Lang: "fr", Name: "Berlin", Preferred: true},
			{PlaceID: MunichID, Lang: "fr", Name: "Munich", Preferred: true},
			{PlaceID: MunichID, Lang: "fr", Name: "Munich"},
			{PlaceID: FrankfurtMainID, Lang: "fr", Name: "Francfort"},
			{PlaceID: FrankfurtMainID, Lang: "fr", Name: "Francfort-sur-le-Main", Preferred: true},
			{PlaceID: FrankfurtOderID, Lang: "fr", Name: "Francfort"},
			{PlaceID: FrankfurtOderID, Lang: "fr", Name: "Francfort-sur-l'Oder", Preferred: true},
			{PlaceID: LahoreID, Lang: "fr", Name: "Lâhore"},
		},
	}
}
