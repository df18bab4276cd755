package catalog

import "github.com/zxckotee/pvp-arena/pkg/types"

// Defaults is the built-in technique set used when no file is configured.
func Defaults() types.TechniqueCatalog {
	return types.TechniqueCatalog{
		Techniques: []types.Technique{
			{ID: "basic_punch", Name: "Basic Punch", Type: "attack", Damage: 10},
			{
				ID: "fireball", Name: "Fireball", Type: "attack", Damage: 18, EnergyCost: 25, Cooldown: 10,
				Effects: []types.TechniqueEffect{{Type: "burn", Name: "Burning", Duration: 3}},
			},
			{
				ID: "poison_blade", Name: "Poison Blade", Type: "attack", Damage: 12, EnergyCost: 15, Cooldown: 8,
				Effects: []types.TechniqueEffect{{Type: "bleed", Name: "Bleeding", Duration: 2, Damage: 6}},
			},
			{
				ID: "thunder_palm", Name: "Thunder Palm", Type: "attack", Damage: 8, EnergyCost: 35, Cooldown: 20,
				Effects: []types.TechniqueEffect{{Type: "stun", Name: "Stunned", Duration: 1}},
			},
			{
				ID: "withering_curse", Name: "Withering Curse", Type: "support", EnergyCost: 20, Cooldown: 12,
				Effects: []types.TechniqueEffect{{Type: "weaken", Name: "Weakened", DurationMs: 8000}},
			},
			{ID: "healing_light", Name: "Healing Light", Type: "support", Healing: 20, EnergyCost: 20, Cooldown: 8},
			{
				ID: "iron_skin", Name: "Iron Skin", Type: "defense", TargetType: "self", EnergyCost: 15, Cooldown: 15,
				Effects: []types.TechniqueEffect{{Type: "protect", Name: "Iron Skin", DurationMs: 8000, OnSelf: true}},
			},
			{
				ID: "swift_step", Name: "Swift Step", Type: "support", TargetType: "self", EnergyCost: 10, Cooldown: 10,
				Effects: []types.TechniqueEffect{{Type: "speed", Name: "Swift", Duration: 3, OnSelf: true}},
			},
			{
				ID: "meditation", Name: "Meditation", Type: "cultivation", Cooldown: 15,
				Effects: []types.TechniqueEffect{{Type: "regenerate", Name: "Qi Flow", Duration: 3, OnSelf: true}},
			},
			{
				ID: "qi_restoration", Name: "Qi Restoration", Type: "support", Healing: 15, EnergyCost: 10, Cooldown: 12,
				Effects: []types.TechniqueEffect{{Type: "regenerate", Name: "Restored", Duration: 2, OnSelf: true}},
			},
			{ID: "spirit_barrier", Name: "Spirit Barrier", Type: "support", EnergyCost: 20, Cooldown: 18,
				Effects: []types.TechniqueEffect{{Type: "protect", Name: "Barrier", Duration: 2, OnSelf: true}},
			},
		},
		SelfTargetIDs: []string{"qi_restoration", "spirit_barrier"},
	}
}
