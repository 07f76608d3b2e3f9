package shopsrv

type seedCategory struct {
	name, slug, description string
}

type seedProduct struct {
	category    string
	name, slug  string
	description string
	priceCents  int64
	stock       int
}

type seedCatalog struct {
	categories []seedCategory
	products   []seedProduct
}

// StoreTypeFood selects the grocery demo catalog.
const StoreTypeFood = "food"

var generalCatalog = seedCatalog{
	categories: []seedCategory{
		{"Electronics", "electronics", "Electronic devices and gadgets"},
		{"Clothing", "clothing", "Fashion and apparel"},
		{"Home & Kitchen", "home-kitchen", "Home and kitchen products"},
	},
	products: []seedProduct{
		{"electronics", "Smartphone X", "smartphone-x", "Latest smartphone with advanced features", 69999, 50},
		{"electronics", "Laptop Pro", "laptop-pro", "Powerful laptop for professionals", 129999, 25},
		{"clothing", "Men's T-shirt", "mens-tshirt", "Comfortable cotton t-shirt", 1999, 100},
		{"clothing", "Women's Jeans", "womens-jeans", "Stylish women's jeans", 4999, 75},
		{"home-kitchen", "Coffee Maker", "coffee-maker", "Automatic coffee maker for home use", 8999, 30},
		{"home-kitchen", "Blender", "blender", "High-speed blender for smoothies and more", 5999, 40},
	},
}

var foodCatalog = seedCatalog{
	categories: []seedCategory{
		{"Groceries", "groceries", "Everyday grocery items"},
		{"Bakery", "bakery", "Fresh bread and pastries"},
		{"Dairy", "dairy", "Milk, cheese, and dairy products"},
		{"Fruits & Vegetables", "fruits-vegetables", "Fresh fruits and vegetables"},
		{"Meat & Seafood", "meat-seafood", "Fresh meat and seafood products"},
	},
	products: []seedProduct{
		{"groceries", "Organic Rice", "organic-rice", "Premium organic white rice, 2kg package", 699, 100},
		{"groceries", "Olive Oil", "olive-oil", "Extra virgin olive oil, 500ml bottle", 999, 50},
		{"bakery", "Artisan Bread", "artisan-bread", "Freshly baked artisan sourdough bread", 499, 30},
		{"bakery", "Chocolate Croissants", "chocolate-croissants", "Pack of 4 butter chocolate croissants", 699, 25},
		{"dairy", "Organic Milk", "organic-milk", "Organic whole milk, 1 liter", 349, 80},
		{"dairy", "Cheddar Cheese", "cheddar-cheese", "Aged cheddar cheese, 250g", 599, 45},
		{"fruits-vegetables", "Organic Bananas", "organic-bananas", "Bunch of organic bananas", 299, 100},
		{"fruits-vegetables", "Fresh Spinach", "fresh-spinach", "Fresh organic spinach, 200g bag", 249, 60},
		{"meat-seafood", "Premium Beef Steak", "premium-beef-steak", "Grass-fed beef ribeye steak, 300g", 1299, 20},
		{"meat-seafood", "Fresh Salmon Fillet", "fresh-salmon-fillet", "Wild-caught salmon fillet, 200g", 999, 15},
	},
}

func catalogFor(storeType string) seedCatalog {
	if storeType == StoreTypeFood {
		return foodCatalog
	}
	return generalCatalog
}

type seedCustomer struct {
	name, email string
	admin       bool
}

var seedCustomers = []seedCustomer{
	{"Admin User", "admin@example.com", true},
	{"Demo Customer", "customer@example.com", false},
}

// DemoPassword is the password of the seeded demo customers.
const DemoPassword = "password"
