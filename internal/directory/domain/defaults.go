package domain

// DefaultLandingContent returns the hardcoded landing document used
// when the backend has no landing_content row or the fetch fails.
func DefaultLandingContent() LandingContent {
	return LandingContent{
		AppName:         "Williams Josè",
		CTAText:         "Ver Servicios",
		HeroImage:       "https://images.unsplash.com/photo-1550751827-4bd374c3f58b",
		HeroTitle:       "Impulso Digital & Tecnología",
		AdminWhatsApp:   "584123456789",
		HeroDescription: "Transformamos tu negocio con Apps a Medida, Diseño Gráfico y Publicidad.",
		Plans: map[PlanType]PlanConfig{
			PlanFree:    {Title: "Básico", Price: "$0", Period: "/mes", ButtonText: "Gratis", Description: "Ideal para comenzar.", Features: []string{"Listado Básico"}},
			PlanInicial: {Title: "Inicial", Price: "$2", Period: "/mes", ButtonText: "Comenzar", Description: "Visibilidad mejorada.", Features: []string{"Listado Destacado"}},
			PlanPro:     {Title: "Profesional", Price: "$5", Period: "/mes", ButtonText: "Destacar", Description: "Para crecimiento.", Features: []string{"Máxima exposición"}},
			PlanPremium: {Title: "Empresarial", Price: "$10", Period: "/mes", ButtonText: "Maximizar", Description: "Todo incluido.", Features: []string{"Publicidad Masiva"}},
		},
	}
}
