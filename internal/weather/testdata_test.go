package weather

const observationJSON = `{
  "response": {"version": "0.1"},
  "current_observation": {
    "display_location": {
      "full": "San Francisco, CA",
      "city": "San Francisco",
      "state": "CA",
      "zip": "94107",
      "country": "US",
      "latitude": "37.77500916",
      "longitude": "-122.41825867"
    },
    "temp_c": 14.2,
    "relative_humidity": "65%",
    "pressure_mb": "1014",
    "weather": "Partly Cloudy",
    "icon_url": "http://icons.wxug.com/i/c/k/partlycloudy.gif"
  }
}`

const remoteErrorJSON = `{
  "response": {
    "version": "0.1",
    "error": {"type": "keynotfound", "description": "this key does not exist"}
  }
}`
